package ledger

import (
	"github.com/ethereum/go-ethereum/common"
)

// Call is an immutable description of one contract invocation. Estimation
// and submission of the same logical call must see identical arguments, so
// the argument list is copied on construction and on read.
type Call struct {
	contract common.Address
	method   string
	args     []interface{}
}

// NewCall builds a Call against the given contract.
func NewCall(contract common.Address, method string, args ...interface{}) Call {
	copied := make([]interface{}, len(args))
	copy(copied, args)
	return Call{
		contract: contract,
		method:   method,
		args:     copied,
	}
}

// Contract returns the target contract address.
func (c Call) Contract() common.Address {
	return c.contract
}

// Method returns the contract method name.
func (c Call) Method() string {
	return c.method
}

// Args returns a copy of the ordered argument list.
func (c Call) Args() []interface{} {
	copied := make([]interface{}, len(c.args))
	copy(copied, c.args)
	return copied
}
