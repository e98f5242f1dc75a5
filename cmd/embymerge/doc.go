// Command embymerge is the operator CLI: it runs the webhook daemon, performs
// one-off library scans, checks Emby connectivity, and manages the
// configuration file.
package main
