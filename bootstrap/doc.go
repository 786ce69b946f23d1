// Package bootstrap gates application readiness on two independent signals:
// the initial auth state has resolved, and the first hero image has been
// preloaded (or failed to). Ready fires exactly once per pass, whichever
// signal arrives last.
package bootstrap
