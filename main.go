// roundctl is the command-line interface for the B3trRound allocation
// contract.
//
// Use it to read round and X-App allocation state, claim allocations, start
// rounds and deploy the contract.
package main

import "github.com/Bidon15/roundctl/cmd"

func main() {
	cmd.Execute()
}
