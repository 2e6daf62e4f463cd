// Package logx is timeoutsched's logging layer on zerolog: short console
// lines, JSON file lines, and a Service whose Apply retargets every Logger it
// handed out when the config reloads.
package logx
