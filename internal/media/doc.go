// Package media holds the library types shared by the Emby client and the
// merge pipelines: library items as returned by the server and the
// provider-qualified identity keys used to look them up.
package media
