// Package greeting formats the greeting messages returned to the desktop shell.
package greeting

import "fmt"

// NoUser is substituted when the store has no row with id 1.
const NoUser = "No user"

// Format returns the plain greeting for name. The name is not escaped.
func Format(name string) string {
	return fmt.Sprintf("Hello, %s! You've been greeted from Rust!", name)
}

// FormatWithUser returns the greeting for name followed by the stored user name.
func FormatWithUser(name, dbName string) string {
	return fmt.Sprintf("%s User from DB: %s", Format(name), dbName)
}
