// Package ticketnft binds the TicketNFT contract: call encoding, view
// reads, typed operations and event decoding.
package ticketnft

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const abiJSON = `[
 {"type":"function","name":"mintTicket","stateMutability":"nonpayable",
  "inputs":[{"name":"to","type":"address"},{"name":"eventInfo","type":"string"}],
  "outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"mintAndList","stateMutability":"nonpayable",
  "inputs":[{"name":"to","type":"address"},{"name":"eventInfo","type":"string"},{"name":"price","type":"uint256"}],
  "outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"setTicketForSale","stateMutability":"nonpayable",
  "inputs":[{"name":"tokenId","type":"uint256"},{"name":"price","type":"uint256"}],"outputs":[]},
 {"type":"function","name":"removeTicketFromSale","stateMutability":"nonpayable",
  "inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[]},
 {"type":"function","name":"buyTicket","stateMutability":"payable",
  "inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[]},
 {"type":"function","name":"transferTicket","stateMutability":"nonpayable",
  "inputs":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"tokenId","type":"uint256"}],"outputs":[]},
 {"type":"function","name":"validateWithSignature","stateMutability":"nonpayable",
  "inputs":[{"name":"tokenId","type":"uint256"},{"name":"nonce","type":"uint256"},{"name":"expiration","type":"uint256"},{"name":"signature","type":"bytes"}],
  "outputs":[]},
 {"type":"function","name":"getTicketPrice","stateMutability":"view",
  "inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"ownerOf","stateMutability":"view",
  "inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"","type":"address"}]},
 {"type":"function","name":"isTicketUsed","stateMutability":"view",
  "inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
 {"type":"function","name":"isForSale","stateMutability":"view",
  "inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
 {"type":"function","name":"getEventInfo","stateMutability":"view",
  "inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"","type":"string"}]},
 {"type":"function","name":"totalSupply","stateMutability":"view",
  "inputs":[],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"event","name":"TicketMinted","anonymous":false,
  "inputs":[{"name":"to","type":"address","indexed":true},{"name":"tokenId","type":"uint256","indexed":true},{"name":"eventInfo","type":"string","indexed":false}]},
 {"type":"event","name":"TicketListed","anonymous":false,
  "inputs":[{"name":"tokenId","type":"uint256","indexed":true},{"name":"owner","type":"address","indexed":true},{"name":"price","type":"uint256","indexed":false}]},
 {"type":"event","name":"TicketUnlisted","anonymous":false,
  "inputs":[{"name":"tokenId","type":"uint256","indexed":true},{"name":"owner","type":"address","indexed":true}]},
 {"type":"event","name":"TicketSold","anonymous":false,
  "inputs":[{"name":"owner","type":"address","indexed":true},{"name":"newOwner","type":"address","indexed":true},{"name":"tokenId","type":"uint256","indexed":true},{"name":"price","type":"uint256","indexed":false}]},
 {"type":"event","name":"TicketTransferred","anonymous":false,
  "inputs":[{"name":"from","type":"address","indexed":true},{"name":"to","type":"address","indexed":true},{"name":"tokenId","type":"uint256","indexed":true}]},
 {"type":"event","name":"TicketValidated","anonymous":false,
  "inputs":[{"name":"tokenId","type":"uint256","indexed":true},{"name":"holder","type":"address","indexed":true}]}
]`

// Event names.
const (
	EventMinted      = "TicketMinted"
	EventListed      = "TicketListed"
	EventUnlisted    = "TicketUnlisted"
	EventSold        = "TicketSold"
	EventTransferred = "TicketTransferred"
	EventValidated   = "TicketValidated"
)

// ABI is the parsed contract interface.
var ABI = mustParse(abiJSON)

func mustParse(s string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic("ticketnft: bad abi: " + err.Error())
	}
	return parsed
}
