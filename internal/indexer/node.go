package indexer

import (
	"github.com/avast/retry-go"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// BlockSource is the part of the node RPC the indexer reads.
// *rpcclient.Client satisfies it.
type BlockSource interface {
	GetBlockCount() (int64, error)
	GetBlockHash(blockHeight int64) (*chainhash.Hash, error)
	GetBlock(blockHash *chainhash.Hash) (*wire.MsgBlock, error)
}

func (i *Indexer) retry(f func() error) error {
	err := f()
	if err != nil {
		err = retry.Do(f, retry.Attempts(3), retry.Context(i.ctx))
	}
	return err
}

func (i *Indexer) getBlockCount() (int64, error) {
	var count int64
	err := i.retry(func() error {
		var err error
		count, err = i.rpc.GetBlockCount()
		return err
	})
	return count, err
}

func (i *Indexer) getBlockHash(height int32) (*chainhash.Hash, error) {
	var hash *chainhash.Hash
	err := i.retry(func() error {
		var err error
		hash, err = i.rpc.GetBlockHash(int64(height))
		return err
	})
	return hash, err
}

func (i *Indexer) getBlock(height int32) (*wire.MsgBlock, error) {
	var block *wire.MsgBlock
	err := i.retry(func() error {
		hash, err := i.rpc.GetBlockHash(int64(height))
		if err != nil {
			return err
		}
		block, err = i.rpc.GetBlock(hash)
		return err
	})
	return block, err
}
