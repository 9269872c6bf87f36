// Package ui draws the terminal progress bar shown while digests download.
package ui
