package chain

import "strings"

// DefaultExplorerURL is the Monad testnet block explorer.
const DefaultExplorerURL = "https://testnet.monadscan.com"

// Explorer builds block explorer links for transactions and addresses.
type Explorer struct {
	base string
}

// NewExplorer creates an Explorer; an empty base falls back to the default.
func NewExplorer(base string) Explorer {
	if base == "" {
		base = DefaultExplorerURL
	}
	return Explorer{base: strings.TrimRight(base, "/")}
}

// TxURL returns the explorer link for a transaction hash.
func (e Explorer) TxURL(txHash string) string {
	if txHash == "" {
		return ""
	}
	return e.base + "/tx/" + txHash
}

// AddressURL returns the explorer link for an address.
func (e Explorer) AddressURL(addr string) string {
	if addr == "" {
		return ""
	}
	return e.base + "/address/" + addr
}
