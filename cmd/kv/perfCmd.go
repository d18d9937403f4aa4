package kv

import (
	"encoding/csv"
	"fmt"
	"log"
	"math"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/ValentinKolb/rKV/cmd/util"
	"github.com/ValentinKolb/rKV/rpc/client"
	"github.com/ValentinKolb/rKV/rpc/commands"
	"github.com/ValentinKolb/rKV/rpc/common"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for rKV clusters",
		Long:    "",
		RunE:    run,
		PreRunE: processPerfConfig,
	}
	perfKeyPrefix        = "__test"
	perfLargeValueSizeKB = 100
	perfNumThreads       = 10
	perfKeySpread        = 100
	perfSkip             = make([]string, 0)
)

// perfResult is the outcome of one benchmark
type perfResult struct {
	bench  testing.BenchmarkResult
	timer  gometrics.Timer
	failed gometrics.Counter
}

// perfTest is a single benchmark, prepare runs before the timer starts
type perfTest struct {
	name    string
	prepare bool
	op      func(key string, counter int) client.Result
}

func init() {
	// add flags
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. put,get)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of goroutines per CPU to use for the benchmark"))
	key = "large-value-size"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How large the value for the put-large test should be (in KB)"))
	key = "keys"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How many different keys to use for the tests"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// Read the configuration from the command line flags and environment variables
	perfLargeValueSizeKB = viper.GetInt("large-value-size")
	perfKeySpread = viper.GetInt("keys")
	perfNumThreads = viper.GetInt("threads")
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	if perfKeySpread <= 0 {
		return fmt.Errorf("keys must be positive")
	}
	return nil
}

func perfTests() []perfTest {
	b := bucket()
	largeValue := make([]byte, perfLargeValueSizeKB*1024)

	return []perfTest{
		{name: "ping", op: func(string, int) client.Result {
			return endpoint.Execute(commands.NewPing())
		}},
		{name: "put", op: func(key string, _ int) client.Result {
			return endpoint.Execute(commands.NewPut(b, key, []byte("test"), "text/plain"))
		}},
		{name: "put-large", op: func(key string, _ int) client.Result {
			return endpoint.Execute(commands.NewPut(b, key, largeValue, "application/octet-stream"))
		}},
		{name: "get", prepare: true, op: func(key string, _ int) client.Result {
			return endpoint.Execute(commands.NewGet(b, key))
		}},
		{name: "get-missing", op: func(key string, _ int) client.Result {
			return endpoint.Execute(commands.NewGet(b, key+"-missing"))
		}},
		{name: "delete", prepare: true, op: func(key string, _ int) client.Result {
			return endpoint.Execute(commands.NewDelete(b, key))
		}},
		{name: "mixed", prepare: true, op: func(key string, counter int) client.Result {
			switch counter % 3 {
			case 0:
				return endpoint.Execute(commands.NewPut(b, key, []byte("test"), "text/plain"))
			case 1:
				return endpoint.Execute(commands.NewGet(b, key))
			default:
				return endpoint.Execute(commands.NewDelete(b, key))
			}
		}},
	}
}

func run(_ *cobra.Command, _ []string) error {

	fmt.Println("Performance testing tool for rKV clusters")

	// Print configuration
	config := endpoint.Registry().Config()
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(config.String())
	fmt.Printf("Threads: %d\n", perfNumThreads)
	fmt.Println()

	fmt.Println("starting tests...")

	results := make(map[string]perfResult)
	for _, test := range perfTests() {
		if shouldSkip(test.name) {
			printResult(test.name, perfResult{})
			continue
		}
		result := runPerfTest(test)
		results[test.name] = result
		printResult(test.name, result)
	}

	// Write results to csv is specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, results, config); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	return nil
}

// runPerfTest runs a benchmark in parallel and records the latency of every operation
func runPerfTest(test perfTest) perfResult {
	result := perfResult{
		timer:  gometrics.NewTimer(),
		failed: gometrics.NewCounter(),
	}

	result.bench = testing.Benchmark(func(b *testing.B) {
		// prepare keys
		getKey, iter := getKeys(test.name)

		if test.prepare {
			iter(func(k string) {
				if r := endpoint.Execute(commands.NewPut(bucket(), k, []byte("test"), "text/plain")); !r.IsSuccess() {
					log.Printf("(%s) - error setting key: %v\n", test.name, r.Err())
				}
			})
		}

		// cleanup
		b.Cleanup(func() {
			iter(func(k string) {
				if r := endpoint.Execute(commands.NewDelete(bucket(), k)); !r.IsSuccess() {
					log.Printf("(%s) - error deleting key: %v\n", test.name, r.Err())
				}
			})
		})

		b.SetParallelism(perfNumThreads)

		b.ResetTimer()

		b.RunParallel(func(pb *testing.PB) {
			counter := 0
			for pb.Next() {
				start := time.Now()
				r := test.op(getKey(counter), counter)
				result.timer.UpdateSince(start)
				if !r.IsSuccess() {
					result.failed.Inc(1)
				}
				counter++
			}
		})
	})

	return result
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func shouldSkip(test string) bool {
	// Check if the test is in the skip list
	for _, skip := range perfSkip {
		if test == skip {
			return true
		}
	}
	return false
}

// creates an array of test keys and functions to work with them
func getKeys(prefix string) (func(int) string, func(func(string))) {
	keys := make([]string, perfKeySpread)
	for i := 0; i < perfKeySpread; i++ {
		keys[i] = fmt.Sprintf("%s-%s-%d", perfKeyPrefix, prefix, i)
	}

	// Function to get a key by index (with wraparound)
	getKey := func(i int) string {
		return keys[i%perfKeySpread]
	}

	// Function to iterate over all keys and apply a function to each
	iterateKeys := func(fn func(string)) {
		for _, key := range keys {
			fn(key)
		}
	}

	return getKey, iterateKeys
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, result perfResult) {
	if result.timer == nil || result.bench.NsPerOp() == 0 {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	nsPerOp := math.Max(float64(result.bench.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)
	p := result.timer.Percentiles([]float64{0.5, 0.99})

	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec\tp50=%s p99=%s\tfailed=%d\n",
		test, nsPerOp, time.Duration(nsPerOp), opsPerSec,
		time.Duration(p[0]), time.Duration(p[1]), result.failed.Count())
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results map[string]perfResult, config common.ClusterConfig) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "P50", "P99", "Failed",
		"Nodes", "PoolSize", "RetryCount", "CompactEncoding",
		"Threads", "LargeValueSizeKB", "Keys Count",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	endpoints := make([]string, len(config.Nodes))
	for i, node := range config.Nodes {
		endpoints[i] = node.Endpoint()
	}

	// Write test results
	for test, result := range results {
		nsPerOp := math.Max(float64(result.bench.NsPerOp()), 1)
		opsPerSec := 1.0 / (nsPerOp / 1e9)
		p := result.timer.Percentiles([]float64{0.5, 0.99})

		row := []string{
			test,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", opsPerSec),
			time.Duration(p[0]).String(),
			time.Duration(p[1]).String(),
			strconv.FormatInt(result.failed.Count(), 10),
			strings.Join(endpoints, ";"),
			strconv.Itoa(config.Nodes[0].PoolSize),
			strconv.Itoa(config.RetryCount),
			strconv.FormatBool(config.Nodes[0].UseCompactEncoding),
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfLargeValueSizeKB),
			strconv.Itoa(perfKeySpread),
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", test, err)
		}
	}

	return nil
}
