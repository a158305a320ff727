// Command authctl is the operator CLI for the contacts auth service.
package main

import "github.com/baechuer/contacts-api/cmd/authctl/cmd"

func main() {
	cmd.Execute()
}
