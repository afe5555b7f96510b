// Package cli implements the tracker command tree.
//
//	tracker run      connect and serve the live map API
//	tracker tail     print store changes as they happen
//	tracker validate check a config file
//	tracker version  print build information
package cli
