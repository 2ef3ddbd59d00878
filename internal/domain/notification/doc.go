// Package notification defines the notification request raised when the
// published schedule changes.
package notification
