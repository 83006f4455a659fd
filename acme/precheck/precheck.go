// Package precheck verifies that a challenge response is visible before the
// challenge is triggered. Nothing in this package runs implicitly; callers
// decide whether to preflight.
package precheck

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/miekg/dns"

	"github.com/sgrant/acmeclient/acme/codec"
	"github.com/sgrant/acmeclient/acme/resources"
)

// DNS01 queries the dns-01 TXT record for host against the given resolver
// address ("ip:port") and reports whether the expected digest is among the
// answers.
func DNS01(host, digest, resolver string) (bool, error) {
	ace, err := codec.ToACE(strings.TrimPrefix(host, "*."))
	if err != nil {
		return false, err
	}

	query := new(dns.Msg)
	query.SetQuestion(dns.Fqdn(resources.DNS01RecordName(ace)), dns.TypeTXT)
	query.RecursionDesired = true

	dnsClient := &dns.Client{Timeout: 10 * time.Second}
	reply, _, err := dnsClient.Exchange(query, resolver)
	if err != nil {
		return false, err
	}
	if reply.Rcode != dns.RcodeSuccess {
		return false, fmt.Errorf("TXT query for %q failed with rcode %s",
			resources.DNS01RecordName(ace), dns.RcodeToString[reply.Rcode])
	}

	for _, answer := range reply.Answer {
		txt, ok := answer.(*dns.TXT)
		if !ok {
			continue
		}
		for _, value := range txt.Txt {
			if value == digest {
				return true, nil
			}
		}
	}
	return false, nil
}

// HTTP01 fetches the http-01 well-known resource for token from hostPort
// ("host" or "host:port") and reports whether the body is the expected key
// authorization.
func HTTP01(hostPort, token, keyAuth string) (bool, error) {
	httpClient := &http.Client{Timeout: 10 * time.Second}
	resourceURL := fmt.Sprintf("http://%s%s", hostPort, resources.HTTP01ResourcePath(token))

	resp, err := httpClient.Get(resourceURL)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("%s returned HTTP status %d", resourceURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(string(body)) == keyAuth, nil
}
