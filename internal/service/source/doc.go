// Package source fetches the published schedule snapshot over HTTP.
package source
