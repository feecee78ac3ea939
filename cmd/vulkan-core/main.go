// vulkan-core is the operator CLI: open the store, run the chain worker
// against it, and expose init/tip/submit-block/submit-tx/mempool/utxo
// commands through a urfave/cli.v1 command table with global flags.
package main

import (
	"fmt"
	"io/ioutil"
	"os"

	"go.dedis.ch/onet/v3/log"
	"golang.org/x/xerrors"
	"gopkg.in/urfave/cli.v1"

	"vulkan/block"
	"vulkan/chain"
	"vulkan/chainhash"
	"vulkan/internal/config"
	"vulkan/mempool"
	"vulkan/store"
	"vulkan/tx"
	"vulkan/utxo"
	"vulkan/worker"
)

func main() {
	cliApp := cli.NewApp()
	cliApp.Name = "vulkan-core"
	cliApp.Usage = "Vulkan proof-of-work chain core: store, chain state machine, mempool."
	cliApp.Version = "0.1"
	cliApp.Flags = []cli.Flag{
		cli.IntFlag{
			Name:  "debug, d",
			Value: 1,
			Usage: "debug-level: 1 for terse, 5 for maximal",
		},
		cli.StringFlag{
			Name:  "config, c",
			Value: "vulkan.toml",
			Usage: "path to the node's TOML configuration file",
		},
	}
	cliApp.Before = func(c *cli.Context) error {
		log.SetDebugVisible(c.Int("debug"))
		return nil
	}
	cliApp.Commands = []cli.Command{
		{
			Name:   "init",
			Usage:  "Open (creating if necessary) the store and confirm the genesis block.",
			Action: cmdInit,
		},
		{
			Name:   "tip",
			Usage:  "Print the current main-chain tip hash and height.",
			Action: cmdTip,
		},
		{
			Name:      "submit-block",
			Usage:     "Decode and submit a block from a file.",
			ArgsUsage: "FILE",
			Action:    cmdSubmitBlock,
		},
		{
			Name:      "submit-tx",
			Usage:     "Decode and admit a transaction from a file into the mempool.",
			ArgsUsage: "FILE",
			Action:    cmdSubmitTx,
		},
		{
			Name:   "mempool",
			Usage:  "List pending transaction ids.",
			Action: cmdMempool,
		},
		{
			Name:      "utxo",
			Usage:     "List the currently unspent outputs of a transaction.",
			ArgsUsage: "TXHASH",
			Action:    cmdUTXO,
		},
	}
	log.ErrFatal(cliApp.Run(os.Args))
}

func loadConfig(c *cli.Context) config.Config {
	path := c.GlobalString("config")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config.Default()
	}
	cfg, err := config.Load(path)
	log.ErrFatal(err, "couldn't load config", path)
	return cfg
}

// openAll opens the store and wires a chain manager, mempool and worker
// over it, the same trio every command below needs.
func openAll(c *cli.Context) (store.KV, *chain.Manager, *mempool.Pool, *worker.Worker) {
	cfg := loadConfig(c)
	kv, err := store.OpenBolt(cfg.DataDir)
	log.ErrFatal(err, "couldn't open store", cfg.DataDir)

	mgr, err := chain.Open(kv)
	log.ErrFatal(err, "couldn't open chain manager")

	pool, err := mempool.Restore(kv, mgr.UTXO(), cfg.MempoolMaxBytes)
	log.ErrFatal(err, "couldn't restore mempool mirror")
	pool.Attach(mgr)

	w := worker.New(mgr, pool)
	w.Start()
	return kv, mgr, pool, w
}

// shutdown stops the worker, mirrors the pool's contents for the next
// warm start, and closes the store, in that order: the mirror must not
// race the worker's own admissions, and the store must outlive the write
// that mirrors into it.
func shutdown(kv store.KV, pool *mempool.Pool, w *worker.Worker) {
	w.Stop()
	if err := pool.Persist(kv); err != nil {
		log.Warnf("vulkan-core: could not persist mempool mirror: %v", err)
	}
	kv.Close()
}

func cmdInit(c *cli.Context) error {
	kv, _, pool, w := openAll(c)
	defer shutdown(kv, pool, w)
	log.Info("vulkan-core: store opened, genesis confirmed")
	return nil
}

func cmdTip(c *cli.Context) error {
	kv, mgr, pool, w := openAll(c)
	defer shutdown(kv, pool, w)

	var tipStr string
	var height uint32
	w.Query(func() {
		tipStr = mgr.Tip().String()
		height = mgr.Height()
	})
	log.Infof("tip=%s height=%d", tipStr, height)
	fmt.Printf("%s %d\n", tipStr, height)
	return nil
}

func cmdSubmitBlock(c *cli.Context) error {
	if c.NArg() != 1 {
		return xerrors.New("usage: submit-block FILE")
	}
	raw, err := ioutil.ReadFile(c.Args().First())
	if err != nil {
		return xerrors.Errorf("couldn't read block file: %+v", err)
	}
	b, err := block.DecodeBytes(raw)
	if err != nil {
		return xerrors.Errorf("couldn't decode block: %+v", err)
	}

	kv, _, pool, w := openAll(c)
	defer shutdown(kv, pool, w)

	if err := w.SubmitBlock(b); err != nil {
		return xerrors.Errorf("block rejected: %+v", err)
	}
	log.Infof("block %s accepted", b.Hash)
	return nil
}

func cmdSubmitTx(c *cli.Context) error {
	if c.NArg() != 1 {
		return xerrors.New("usage: submit-tx FILE")
	}
	raw, err := ioutil.ReadFile(c.Args().First())
	if err != nil {
		return xerrors.Errorf("couldn't read transaction file: %+v", err)
	}
	t, err := tx.DecodeBytes(raw)
	if err != nil {
		return xerrors.Errorf("couldn't decode transaction: %+v", err)
	}

	kv, _, pool, w := openAll(c)
	defer shutdown(kv, pool, w)

	if err := w.SubmitTx(t); err != nil {
		return xerrors.Errorf("transaction rejected: %+v", err)
	}
	log.Infof("transaction %s admitted to the pool", t.ID)
	return nil
}

func cmdMempool(c *cli.Context) error {
	kv, _, pool, w := openAll(c)
	defer shutdown(kv, pool, w)

	var ids []fmt.Stringer
	w.Query(func() {
		for _, id := range pool.Txs() {
			id := id
			ids = append(ids, id)
		}
	})
	for _, id := range ids {
		fmt.Println(id.String())
	}
	return nil
}

func cmdUTXO(c *cli.Context) error {
	if c.NArg() != 1 {
		return xerrors.New("usage: utxo TXHASH")
	}
	txHash, err := chainhash.NewFromHex(c.Args().First())
	if err != nil {
		return xerrors.Errorf("couldn't parse transaction hash: %+v", err)
	}

	kv, mgr, pool, w := openAll(c)
	defer shutdown(kv, pool, w)

	var entries []utxo.Entry
	var qerr error
	w.Query(func() {
		entries, qerr = mgr.UTXO().OutputsForTx(txHash)
	})
	if qerr != nil {
		return xerrors.Errorf("couldn't scan utxo set: %+v", qerr)
	}
	if len(entries) == 0 {
		log.Infof("no unspent outputs for %s", txHash)
		return nil
	}
	for _, e := range entries {
		fmt.Printf("%d %d %s\n", e.Index, e.Output.Amount, e.Output.Address)
	}
	return nil
}
