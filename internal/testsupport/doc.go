// Package testsupport holds fixtures shared by package tests: temp-dir
// configurations, job store handles and placeholder media trees.
package testsupport
