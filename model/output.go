package model

import (
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/maseology/mmio"
)

// writers hold the run's output files: basin state samples and the
// water-balance table, one row per basin per tracked flux per reporting
// interval.
type writers struct {
	basin, wbal *mmio.CSVwriter
}

func newWriters(dir string) (*writers, error) {
	mmio.MakeDir(dir)
	bw := mmio.NewCSVwriter(filepath.Join(dir, "basin.csv"))
	if err := bw.WriteHead("time,node_id,storage,level"); err != nil {
		return nil, errors.Wrap(err, "model: basin writer")
	}
	ww := mmio.NewCSVwriter(filepath.Join(dir, "waterbalance.csv"))
	if err := ww.WriteHead("time,node_id,variable,value"); err != nil {
		return nil, errors.Wrap(err, "model: water-balance writer")
	}
	return &writers{basin: bw, wbal: ww}, nil
}

func (w *writers) writeBasin(tm time.Time, id int, sto, lvl float64) {
	w.basin.WriteLine(tm.Format("2006-01-02 15:04:05"), id, sto, lvl)
}

func (w *writers) writeBalance(tm time.Time, id int, variable string, v float64) {
	w.wbal.WriteLine(tm.Format("2006-01-02 15:04:05"), id, variable, v)
}

func (w *writers) close() {
	w.basin.Close()
	w.wbal.Close()
}
