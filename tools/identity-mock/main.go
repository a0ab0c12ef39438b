package main

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
)

// Employee mirrors the registry response the engine expects.
type Employee struct {
	Ref        string `json:"employee_ref"`
	Name       string `json:"name"`
	Department string `json:"department"`
}

// Any reference is considered known unless it starts with "ghost-", which
// makes referential-error paths easy to exercise locally.
func employeeHandler(w http.ResponseWriter, r *http.Request) {
	ref := strings.TrimPrefix(r.URL.Path, "/employees/")
	if ref == "" || strings.HasPrefix(ref, "ghost-") {
		http.NotFound(w, r)
		return
	}

	log.Printf("Resolved employee %s", ref)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(Employee{
		Ref:        ref,
		Name:       "Employee " + ref,
		Department: "Operations",
	})
}

func main() {
	http.HandleFunc("/employees/", employeeHandler)
	log.Println("Identity registry mock starting on port 8081...")
	log.Fatal(http.ListenAndServe(":8081", nil))
}
