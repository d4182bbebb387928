// Package main is the entry point for the edgeguard admission service.
package main

func main() {
	Execute()
}
