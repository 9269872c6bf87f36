// Package config provides configuration structures and utilities for digestfetch.
// It defines archive endpoints, naming of downloaded digests, failure policy
// and the YAML configuration file with named archive profiles.
package config
