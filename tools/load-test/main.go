package main

import (
	"bytes"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

func main() {
	// Configuration
	url := "http://localhost:8080/api/v1/attendance/sync"
	contentType := "application/json"

	numEmployees := 2000
	batchesPerEmployee := 2
	totalRequests := numEmployees * batchesPerEmployee
	concurrency := 50 // Number of concurrent requests to avoid local port exhaustion

	fmt.Printf("Starting load test: %d employees (%d batches each) to %s with concurrency %d\n", numEmployees, batchesPerEmployee, url, concurrency)

	var wg sync.WaitGroup
	sem := make(chan struct{}, concurrency) // Semaphore to limit concurrency

	var successCount int64
	var failCount int64

	startTime := time.Now()

	for i := 0; i < numEmployees; i++ {
		wg.Add(1)
		sem <- struct{}{} // Acquire token

		employeeRef := fmt.Sprintf("load-test-emp-%d", i)

		go func(ref string) {
			defer wg.Done()
			defer func() { <-sem }() // Release token

			// A morning in/out pair; resubmitting the same batch exercises
			// the duplicate-skip path.
			payload := []byte(fmt.Sprintf(`{"attendance_data": [
				{"employee_ref": %q, "clock_type": "morning_in", "clock_time": "2025-09-04T08:00:00Z", "date": "2025-09-04"},
				{"employee_ref": %q, "clock_type": "morning_out", "clock_time": "2025-09-04T12:00:00Z", "date": "2025-09-04", "regular_hours": 4}
			]}`, ref, ref))

			for j := 0; j < batchesPerEmployee; j++ {
				resp, err := http.Post(url, contentType, bytes.NewBuffer(payload))
				if err != nil {
					atomic.AddInt64(&failCount, 1)
					continue
				}

				if resp.StatusCode >= 200 && resp.StatusCode < 300 {
					atomic.AddInt64(&successCount, 1)
				} else {
					atomic.AddInt64(&failCount, 1)
				}
				resp.Body.Close()
			}
		}(employeeRef)
	}

	wg.Wait()
	duration := time.Since(startTime)

	fmt.Println("\n--- Load Test Results ---")
	fmt.Printf("Total Duration: %v\n", duration)
	fmt.Printf("Total Requests: %d\n", totalRequests)
	fmt.Printf("Successful:     %d\n", successCount)
	fmt.Printf("Failed:         %d\n", failCount)
	fmt.Printf("Requests/Sec:   %.2f\n", float64(totalRequests)/duration.Seconds())
}
