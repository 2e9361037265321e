// Package catalog loads reusable campaign templates from YAML files.
//
// A template describes a drip sequence without binding it to a campaign ID
// or any prospects. The loader reads templates from files and directories,
// validates them, caches them per file, and can watch the source paths for
// changes, reloading with a short debounce when a template is edited.
package catalog
