// smoke-api exercises a running API end to end: obtain a token, open a lead,
// convert it, log a communication on the customer and verify the records read
// back consistently.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"time"
)

func main() {
	base := os.Getenv("RELAY_API_URL")
	if base == "" {
		base = "http://localhost:8080"
	}
	email := os.Getenv("RELAY_SMOKE_EMAIL")
	password := os.Getenv("RELAY_SMOKE_PASSWORD")
	if email == "" || password == "" {
		log.Fatal("set RELAY_SMOKE_EMAIL and RELAY_SMOKE_PASSWORD")
	}

	c := &client{base: base, http: &http.Client{Timeout: 5 * time.Second}}

	var tok struct {
		Token string `json:"token"`
	}
	c.call(http.MethodPost, "/v1/auth/token", map[string]string{
		"email": email, "password": password,
	}, &tok)
	c.token = tok.Token

	name := fmt.Sprintf("smoke-%d", rand.Int())
	var lead struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	c.call(http.MethodPost, "/v1/leads", map[string]string{"name": name}, &lead)
	if lead.Status != "new" {
		log.Fatalf("fresh lead status = %q, want new", lead.Status)
	}

	var customer struct {
		ID     string `json:"id"`
		LeadID string `json:"lead_id"`
	}
	c.call(http.MethodPost, "/v1/leads/"+lead.ID+"/convert", nil, &customer)
	if customer.LeadID != lead.ID {
		log.Fatalf("converted customer points at %q, want %q", customer.LeadID, lead.ID)
	}

	c.call(http.MethodGet, "/v1/leads/"+lead.ID, nil, &lead)
	if lead.Status != "converted" {
		log.Fatalf("converted lead status = %q, want converted", lead.Status)
	}

	var comm struct {
		ID string `json:"id"`
	}
	c.call(http.MethodPost, "/v1/communications", map[string]string{
		"customer_id": customer.ID, "channel": "note", "subject": "smoke check",
	}, &comm)
	c.call(http.MethodGet, "/v1/communications/"+comm.ID, nil, &comm)

	fmt.Printf("✅ api smoke test passed: lead=%s customer=%s\n", lead.ID, customer.ID)
}

type client struct {
	base  string
	token string
	http  *http.Client
}

func (c *client) call(method, path string, body, out any) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			log.Fatalf("marshal %s %s: %v", method, path, err)
		}
	}
	req, err := http.NewRequest(method, c.base+path, bytes.NewReader(payload))
	if err != nil {
		log.Fatalf("request %s %s: %v", method, path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		log.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		log.Fatalf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			log.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
}
