// Command wedx runs the WedX portfolio rebalancing agent and a few account
// maintenance commands.
package main

func main() {
	Execute()
}
