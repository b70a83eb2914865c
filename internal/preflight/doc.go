// Package preflight provides readiness checks for the data directory and
// the files atelier keeps in it.
//
// The CLI "atelier doctor" command runs RunAll and prints each result;
// import and migrate-hash use CheckDirectoryAccess on the pool before they
// write anything.
package preflight
