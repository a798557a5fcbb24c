// Command honeycomb drives the regional basemap cache-build and
// tile-upload pipeline: data refresh, compact-cache build, tile export,
// and parallel content-addressed upload, for one basemap at a time.
package main

func main() {
	Execute()
}
