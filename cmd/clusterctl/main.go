// Command clusterctl clusters a file of points offline, the same way the API
// groups requests into map markers.
package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
