// Package config builds the officebot configuration once at startup.
//
// Load reads the environment on top of Default; the serve command then
// applies explicitly set flags and calls Validate, which reports every
// missing or invalid setting in one error.
package config
