package types

// Block pairs a header with its ordered transaction sequence. The first
// transaction is the cellbase by convention.
type Block struct {
	Header       Header         `json:"header"`
	Transactions []*Transaction `json:"transactions"`
}

// Hash returns the block's identity, which is its header's hash.
func (b *Block) Hash() H256 {
	return b.Header.Hash()
}

// IsGenesis reports whether this is the genesis block.
func (b *Block) IsGenesis() bool {
	return b.Header.IsGenesis()
}

// TxHashes returns the identity hashes of all transactions in block order.
func (b *Block) TxHashes() []H256 {
	hashes := make([]H256, len(b.Transactions))
	for i, tx := range b.Transactions {
		hashes[i] = tx.Hash()
	}
	return hashes
}

// WitnessHashes returns the witness hashes of all transactions in block order.
func (b *Block) WitnessHashes() []H256 {
	hashes := make([]H256, len(b.Transactions))
	for i, tx := range b.Transactions {
		hashes[i] = tx.WitnessHash()
	}
	return hashes
}

// Cellbase returns the block's cellbase transaction, or nil for an empty
// block.
func (b *Block) Cellbase() *Transaction {
	if len(b.Transactions) == 0 {
		return nil
	}
	return b.Transactions[0]
}
