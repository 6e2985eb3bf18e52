package tolar

import (
	"slices"
	"strings"
)

const (
	methodBlockCount            = "tol_getBlockCount"
	methodBlockByIndex          = "tol_getBlockByIndex"
	methodBlockByHash           = "tol_getBlockByHash"
	methodTransaction           = "tol_getTransaction"
	methodTransactionReceipt    = "tol_getTransactionReceipt"
	methodNonce                 = "tol_getNonce"
	methodBalance               = "tol_getBalance"
	methodGasEstimate           = "tol_getGasEstimate"
	methodTransactionProtobuf   = "tol_getTransactionProtobuf"
	methodTryCall               = "tol_tryCallTransaction"
	methodSendSignedTransaction = "tx_sendSignedTransaction"
	methodSendRawTransaction    = "account_sendRawTransaction"
	methodNewBlockFilter        = "eth_newBlockFilter"
	methodNewPendingTxFilter    = "eth_newPendingTransactionFilter"
	methodNewFilter             = "eth_newFilter"
	methodGetFilterChanges      = "eth_getFilterChanges"
	methodUninstallFilter       = "eth_uninstallFilter"
)

// methodSpec describes the positional params a method takes.
type methodSpec struct {
	arity int
}

var catalogue = map[string]methodSpec{
	methodBlockCount:            {arity: 0},
	methodBlockByIndex:          {arity: 2}, // index, include full transactions
	methodBlockByHash:           {arity: 1},
	methodTransaction:           {arity: 1},
	methodTransactionReceipt:    {arity: 1},
	methodNonce:                 {arity: 2}, // address, block parameter
	methodBalance:               {arity: 2}, // address, block parameter
	methodGasEstimate:           {arity: 1},
	methodTransactionProtobuf:   {arity: 1},
	methodTryCall:               {arity: 2}, // call, block parameter
	methodSendSignedTransaction: {arity: 1},
	methodSendRawTransaction:    {arity: 1},
	methodNewBlockFilter:        {arity: 0},
	methodNewPendingTxFilter:    {arity: 0},
	methodNewFilter:             {arity: 1},
	methodGetFilterChanges:      {arity: 1},
	methodUninstallFilter:       {arity: 1},
}

// Catalogue returns every method the client knows how to call, in lexical order.
func Catalogue() []string {
	methods := make([]string, 0, len(catalogue))
	for method := range catalogue {
		methods = append(methods, method)
	}
	slices.Sort(methods)
	return methods
}

// NodeFilterCapabilities are the methods a node must support for node-side filters.
func NodeFilterCapabilities() []string {
	return []string{
		methodNewBlockFilter,
		methodNewPendingTxFilter,
		methodNewFilter,
		methodGetFilterChanges,
		methodUninstallFilter,
	}
}

func defaultCapabilities() []string {
	var methods []string
	for method := range catalogue {
		if strings.HasPrefix(method, "tol_") || strings.HasPrefix(method, "tx_") || strings.HasPrefix(method, "account_") {
			methods = append(methods, method)
		}
	}
	return methods
}
