// Package utils holds small helpers shared by the catalog and the API:
// content digests for tool sources and bounds on evaluation input.
package utils
