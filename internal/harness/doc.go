// Package harness provides conformance testing for the splitter.
//
// The harness loads YAML scenarios, feeds their partitions through the real
// splitter with recording consumers, and checks the outcome against
// assertions and golden traces.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	schema:
//	  keyspace: s3
//	  table: chunk
//	  partition_key: [{name: bucket}, {name: object_id}]
//	component: object_id
//	capacity: 1                  # optional per-stream channel capacity
//	budget: 4                    # optional shared fragment budget
//	partitions:                  # same format as the split input file
//	  - key: [bkt, A]
//	    rows:
//	      - clustering: ["0000"]
//	        cells: {data: hello}
//	failures:                    # optional consumer failure injection
//	  - key: A
//	    after: 1
//	    message: disk full
//	source_error:                # optional input failure injection
//	  after: 3
//	  message: connection reset
//	assertions:
//	  - type: stream_order
//	    keys: [A, B]
//	  - type: error_code
//	    code: CONSUMER_FAILED
//
// # Assertion Types
//
// The following assertion types are supported:
//
//   - stream_count: Verifies how many sub-streams were created
//   - stream_order: Verifies the creation order of sub-streams
//   - partition_order: Verifies the partitions one sub-stream received
//   - error_code: Verifies the run's error code, "none" for success
//   - fragments_total: Verifies how many fragments were routed
//
// # Deterministic Testing
//
// Seq numbers come from a fresh logical clock per run and every stream
// records its fragments independently, so traces are identical across runs
// regardless of goroutine scheduling. The one counter that depends on
// scheduling, Stats.Dropped, is never part of a trace.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/interleaved.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness
