// Package store persists the chain in bbolt and serves the lookup surface
// snapshots read through.
package store

import (
	"encoding/binary"
	"fmt"

	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/JiadongZhao/ckb/internal/chain"
	"github.com/JiadongZhao/ckb/internal/types"
)

var (
	bucketHeaders    = []byte("headers")    // hash -> header
	bucketBlocks     = []byte("blocks")     // hash -> block
	bucketIndex      = []byte("index")      // number -> hash (main chain)
	bucketNumbers    = []byte("numbers")    // hash -> number (main chain)
	bucketTxInfo     = []byte("txinfo")     // tx hash -> TransactionInfo
	bucketTxMeta     = []byte("txmeta")     // tx hash -> TxMeta
	bucketBlockExt   = []byte("blockext")   // hash -> BlockExt
	bucketBlockEpoch = []byte("blockepoch") // hash -> epoch index
	bucketEpochs     = []byte("epochs")     // epoch index -> EpochExt
	bucketEpochIndex = []byte("epochindex") // epoch number -> epoch index
	bucketMeta       = []byte("meta")
)

var keyTip = []byte("tip")

// BoltStore is a bbolt-backed chain store. Each lookup runs in its own read
// transaction and sees the latest committed data; the store keeps no
// per-tip view, so lookups made after the writer attaches new blocks
// (transactions, liveness meta, blocks by hash) reflect those blocks.
type BoltStore struct {
	db     *bolt.DB
	logger *zap.Logger
}

// NewBoltStore opens (or creates) the store at path.
func NewBoltStore(path string, logger *zap.Logger) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		buckets := [][]byte{
			bucketHeaders, bucketBlocks, bucketIndex, bucketNumbers,
			bucketTxInfo, bucketTxMeta, bucketBlockExt, bucketBlockEpoch,
			bucketEpochs, bucketEpochIndex, bucketMeta,
		}
		for _, name := range buckets {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create buckets: %w", err)
	}

	return &BoltStore{db: db, logger: logger}, nil
}

// Close releases the underlying database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func numberKey(number uint64) []byte {
	var key [8]byte
	binary.BigEndian.PutUint64(key[:], number)
	return key[:]
}

// PutEpoch stores epoch parameters under the given index and maps the epoch
// number to it.
func (s *BoltStore) PutEpoch(index types.H256, ext *types.EpochExt) error {
	data, err := encodeEpoch(ext)
	if err != nil {
		return fmt.Errorf("encode epoch %d: %w", ext.Number, err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketEpochs).Put(index[:], data); err != nil {
			return err
		}
		return tx.Bucket(bucketEpochIndex).Put(numberKey(ext.Number), index[:])
	})
}

// AttachBlock appends a block to the main chain in a single batch: payloads,
// the number index, per-transaction info and liveness meta, the block ext,
// and the epoch membership. Inputs consumed by the block's transactions are
// marked dead. The tip moves to the new block.
func (s *BoltStore) AttachBlock(block *types.Block, ext *types.BlockExt, epochIndex types.H256) error {
	hash := block.Hash()
	headerData, err := encodeHeader(&block.Header)
	if err != nil {
		return fmt.Errorf("encode header %s: %w", hash, err)
	}
	blockData, err := encodeBlock(block)
	if err != nil {
		return fmt.Errorf("encode block %s: %w", hash, err)
	}
	extData, err := encodeBlockExt(ext)
	if err != nil {
		return fmt.Errorf("encode block ext %s: %w", hash, err)
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketHeaders).Put(hash[:], headerData); err != nil {
			return err
		}
		if err := tx.Bucket(bucketBlocks).Put(hash[:], blockData); err != nil {
			return err
		}
		if err := tx.Bucket(bucketIndex).Put(numberKey(block.Header.Number), hash[:]); err != nil {
			return err
		}
		if err := tx.Bucket(bucketNumbers).Put(hash[:], numberKey(block.Header.Number)); err != nil {
			return err
		}
		if err := tx.Bucket(bucketBlockExt).Put(hash[:], extData); err != nil {
			return err
		}
		if err := tx.Bucket(bucketBlockEpoch).Put(hash[:], epochIndex[:]); err != nil {
			return err
		}

		infos := tx.Bucket(bucketTxInfo)
		metas := tx.Bucket(bucketTxMeta)
		for i, transaction := range block.Transactions {
			txHash := transaction.Hash()
			infoData, err := encodeTxInfo(&types.TransactionInfo{
				BlockHash:   hash,
				BlockNumber: block.Header.Number,
				Index:       uint32(i),
			})
			if err != nil {
				return err
			}
			if err := infos.Put(txHash[:], infoData); err != nil {
				return err
			}

			metaData, err := encodeTxMeta(types.NewTxMeta(len(transaction.Outputs), transaction.IsCellbase()))
			if err != nil {
				return err
			}
			if err := metas.Put(txHash[:], metaData); err != nil {
				return err
			}

			if transaction.IsCellbase() {
				continue
			}
			for _, input := range transaction.Inputs {
				if err := markDead(metas, input.PreviousOutput); err != nil {
					return err
				}
			}
		}

		return tx.Bucket(bucketMeta).Put(keyTip, hash[:])
	})
	if err != nil {
		return err
	}

	s.logger.Debug("block attached",
		zap.Uint64("number", block.Header.Number),
		zap.String("hash", hash.String()),
		zap.Int("transactions", len(block.Transactions)),
	)
	return nil
}

// markDead flips the dead bit of the consumed out-point, when its creating
// transaction is known. Spends of unknown transactions are the writer's
// problem, not the store's.
func markDead(metas *bolt.Bucket, op types.OutPoint) error {
	data := metas.Get(op.TxHash[:])
	if data == nil {
		return nil
	}
	meta, err := decodeTxMeta(data)
	if err != nil {
		return err
	}
	meta.SetDead(op.Index)
	updated, err := encodeTxMeta(meta)
	if err != nil {
		return err
	}
	return metas.Put(op.TxHash[:], updated)
}

// Tip returns the hash of the most recently attached block.
func (s *BoltStore) Tip() (types.H256, bool) {
	var hash types.H256
	var found bool
	s.db.View(func(tx *bolt.Tx) error {
		if data := tx.Bucket(bucketMeta).Get(keyTip); data != nil {
			copy(hash[:], data)
			found = true
		}
		return nil
	})
	return hash, found
}

// GetHeader implements chain.ChainStore.
func (s *BoltStore) GetHeader(hash types.H256) (*types.Header, bool) {
	var header *types.Header
	s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketHeaders).Get(hash[:])
		if data == nil {
			return nil
		}
		decoded, err := decodeHeader(data)
		if err != nil {
			s.logger.Error("corrupt header record", zap.String("hash", hash.String()), zap.Error(err))
			return nil
		}
		header = decoded
		return nil
	})
	return header, header != nil
}

// GetBlock implements chain.ChainStore.
func (s *BoltStore) GetBlock(hash types.H256) (*types.Block, bool) {
	var block *types.Block
	s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketBlocks).Get(hash[:])
		if data == nil {
			return nil
		}
		decoded, err := decodeBlock(data)
		if err != nil {
			s.logger.Error("corrupt block record", zap.String("hash", hash.String()), zap.Error(err))
			return nil
		}
		block = decoded
		return nil
	})
	return block, block != nil
}

// GetBlockHash implements chain.ChainStore.
func (s *BoltStore) GetBlockHash(number uint64) (types.H256, bool) {
	var hash types.H256
	var found bool
	s.db.View(func(tx *bolt.Tx) error {
		if data := tx.Bucket(bucketIndex).Get(numberKey(number)); data != nil {
			copy(hash[:], data)
			found = true
		}
		return nil
	})
	return hash, found
}

// GetBlockNumber implements chain.ChainStore.
func (s *BoltStore) GetBlockNumber(hash types.H256) (uint64, bool) {
	var number uint64
	var found bool
	s.db.View(func(tx *bolt.Tx) error {
		if data := tx.Bucket(bucketNumbers).Get(hash[:]); data != nil {
			number = binary.BigEndian.Uint64(data)
			found = true
		}
		return nil
	})
	return number, found
}

// GetTransaction implements chain.ChainStore.
func (s *BoltStore) GetTransaction(hash types.H256) (*types.Transaction, types.H256, bool) {
	info, ok := s.GetTransactionInfo(hash)
	if !ok {
		return nil, types.H256{}, false
	}
	block, ok := s.GetBlock(info.BlockHash)
	if !ok || int(info.Index) >= len(block.Transactions) {
		return nil, types.H256{}, false
	}
	return block.Transactions[info.Index], info.BlockHash, true
}

// GetTransactionInfo implements chain.ChainStore.
func (s *BoltStore) GetTransactionInfo(hash types.H256) (*types.TransactionInfo, bool) {
	var info *types.TransactionInfo
	s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketTxInfo).Get(hash[:])
		if data == nil {
			return nil
		}
		decoded, err := decodeTxInfo(data)
		if err != nil {
			s.logger.Error("corrupt tx info record", zap.String("hash", hash.String()), zap.Error(err))
			return nil
		}
		info = decoded
		return nil
	})
	return info, info != nil
}

// GetTxMeta implements chain.ChainStore.
func (s *BoltStore) GetTxMeta(hash types.H256) (*types.TxMeta, bool) {
	var meta *types.TxMeta
	s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketTxMeta).Get(hash[:])
		if data == nil {
			return nil
		}
		decoded, err := decodeTxMeta(data)
		if err != nil {
			s.logger.Error("corrupt tx meta record", zap.String("hash", hash.String()), zap.Error(err))
			return nil
		}
		meta = decoded
		return nil
	})
	return meta, meta != nil
}

// GetBlockExt implements chain.ChainStore.
func (s *BoltStore) GetBlockExt(hash types.H256) (*types.BlockExt, bool) {
	var ext *types.BlockExt
	s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketBlockExt).Get(hash[:])
		if data == nil {
			return nil
		}
		decoded, err := decodeBlockExt(data)
		if err != nil {
			s.logger.Error("corrupt block ext record", zap.String("hash", hash.String()), zap.Error(err))
			return nil
		}
		ext = decoded
		return nil
	})
	return ext, ext != nil
}

// GetBlockEpochIndex implements chain.ChainStore.
func (s *BoltStore) GetBlockEpochIndex(hash types.H256) (types.H256, bool) {
	var index types.H256
	var found bool
	s.db.View(func(tx *bolt.Tx) error {
		if data := tx.Bucket(bucketBlockEpoch).Get(hash[:]); data != nil {
			copy(index[:], data)
			found = true
		}
		return nil
	})
	return index, found
}

// GetEpochExt implements chain.ChainStore.
func (s *BoltStore) GetEpochExt(index types.H256) (*types.EpochExt, bool) {
	var epoch *types.EpochExt
	s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketEpochs).Get(index[:])
		if data == nil {
			return nil
		}
		decoded, err := decodeEpoch(data)
		if err != nil {
			s.logger.Error("corrupt epoch record", zap.String("index", index.String()), zap.Error(err))
			return nil
		}
		epoch = decoded
		return nil
	})
	return epoch, epoch != nil
}

// GetEpochIndex implements chain.ChainStore.
func (s *BoltStore) GetEpochIndex(number uint64) (types.H256, bool) {
	var index types.H256
	var found bool
	s.db.View(func(tx *bolt.Tx) error {
		if data := tx.Bucket(bucketEpochIndex).Get(numberKey(number)); data != nil {
			copy(index[:], data)
			found = true
		}
		return nil
	})
	return index, found
}

var _ chain.ChainStore = (*BoltStore)(nil)
