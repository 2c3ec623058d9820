// Command token-ledger keeps the token balances and fiat prices of one account in sync.
package main

import (
	"os"
)

func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
