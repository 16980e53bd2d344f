// Command exact scans the transverse field of short Ising chains with exact diagonalization.
// It provides reference energies, magnetizations and Binder cumulants for the dmrg command.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/fumin/tndmrg/exactdiag"
	"github.com/fumin/tndmrg/mps"
)

const (
	fnameDone       = "done.txt"
	fnameStatistics = "statistics.json"
)

var (
	runDir = flag.String("d", filepath.Join("runs", "exact"), "run directory")
	maxL   = flag.Int("l", 10, "maximum chain length")
	jobs   = flag.Int("j", runtime.NumCPU(), "number of concurrent diagonalizations")
)

type Statistics struct {
	L int
	H float64
	exactdiag.Statistics
}

func solve(dir string, l int, h float64) error {
	donePath := filepath.Join(dir, fnameDone)
	if _, err := os.Stat(donePath); err == nil {
		return nil
	}
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return errors.Wrap(err, "")
	}

	w, err := mps.Ising(l, -h, -1)
	if err != nil {
		return errors.Wrap(err, "")
	}
	vvs, err := exactdiag.Eigen(w)
	if err != nil {
		return errors.Wrap(err, "")
	}
	stats, err := exactdiag.GetStatistics(l, vvs)
	if err != nil {
		return errors.Wrap(err, "")
	}
	// Only the lowest levels are worth keeping.
	stats.EigenValue = stats.EigenValue[:min(len(stats.EigenValue), 3)]

	b, err := json.Marshal(stats)
	if err != nil {
		return errors.Wrap(err, "")
	}
	if err := os.WriteFile(filepath.Join(dir, fnameStatistics), b, 0644); err != nil {
		return errors.Wrap(err, "")
	}
	if err := os.WriteFile(donePath, nil, 0644); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}

func readStatistics(dir string, l int, h float64) (Statistics, error) {
	b, err := os.ReadFile(filepath.Join(dir, fnameStatistics))
	if err != nil {
		return Statistics{}, errors.Wrap(err, "")
	}
	s := Statistics{L: l, H: h}
	if err := json.Unmarshal(b, &s.Statistics); err != nil {
		return Statistics{}, errors.Wrap(err, dir)
	}
	return s, nil
}

// fields returns the transverse fields to scan, denser around the critical point h = 1.
func fields() []float64 {
	hLogs := []float64{-2, -1.5, -1, 1, 1.5, 2}
	for _, hl := range []float64{0.05, 0.1, 0.2, 0.3, 0.4, 0.5} {
		hLogs = append(hLogs, hl, -hl)
	}
	hs := make([]float64, 0, len(hLogs)+1)
	hs = append(hs, 1)
	for _, hl := range hLogs {
		hs = append(hs, math.Pow(10, hl))
	}
	return hs
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds | log.Llongfile | log.LstdFlags)

	if err := mainWithErr(); err != nil {
		log.Fatalf("%+v", err)
	}
}

func mainWithErr() error {
	if *maxL < 2 || 1<<*maxL > exactdiag.MaxDim {
		return errors.Errorf("chain length %d", *maxL)
	}
	if err := os.MkdirAll(*runDir, os.ModePerm); err != nil {
		return errors.Wrap(err, "")
	}

	type job struct {
		l int
		h float64
	}
	todo := make([]job, 0)
	for l := 2; l <= *maxL; l++ {
		for _, h := range fields() {
			todo = append(todo, job{l: l, h: h})
		}
	}

	stats := make([]Statistics, len(todo))
	var g errgroup.Group
	g.SetLimit(max(*jobs, 1))
	for i, j := range todo {
		g.Go(func() error {
			dir := filepath.Join(*runDir, strconv.Itoa(j.l), strconv.FormatFloat(j.h, 'f', 6, 64))
			if err := solve(dir, j.l, j.h); err != nil {
				return errors.Wrap(err, fmt.Sprintf("%d %f", j.l, j.h))
			}
			s, err := readStatistics(dir, j.l, j.h)
			if err != nil {
				return errors.Wrap(err, fmt.Sprintf("%d %f", j.l, j.h))
			}
			stats[i] = s
			log.Printf("%d %f", j.l, j.h)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return errors.Wrap(err, "")
	}

	fmt.Printf("l,h,e0,e1,e2,m,binder\n")
	for _, s := range stats {
		e := append(s.EigenValue, math.NaN(), math.NaN(), math.NaN())
		fmt.Printf("%d,%f,%f,%f,%f,%f,%f\n", s.L, s.H, e[0], e[1], e[2], s.Magnetization, s.BinderCumulant)
	}
	return nil
}
