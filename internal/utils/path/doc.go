// Package pathutils normalizes file-system and repository-relative paths.
package pathutils
