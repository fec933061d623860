// Package main implements the datalake CLI.
package main

func main() {
	Execute()
}
