package model

import "time"

// TxRecord is one journal line describing a lifecycle transition.
type TxRecord struct {
	ID        string    `json:"id"`
	RunID     string    `json:"run_id"`
	Dialog    string    `json:"dialog"`
	Kind      string    `json:"kind"`
	Phase     string    `json:"phase"`
	TxHash    string    `json:"tx_hash,omitempty"`
	Message   string    `json:"message,omitempty"`
	Account   string    `json:"account,omitempty"`
	ChainID   uint64    `json:"chain_id"`
	CreatedAt time.Time `json:"created_at"`
}
