// The guardstack binary demonstrates the protection levels of a
// guardstack.Stack.
package main

import "github.com/solidifylabs/guardstack/guardstackcli"

func main() {
	guardstackcli.Run()
}
