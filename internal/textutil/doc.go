// Package textutil holds small formatting helpers shared by the CLI and log
// output.
package textutil
