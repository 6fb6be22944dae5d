package stingray

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// The ZXTM Pool API is SOAP 1.1 with SOAP-ENC arrays (and arrays of
// arrays), which Go SOAP generators don't marshal correctly -- the same
// bug suds had.  The envelopes are simple enough to build by hand.

const poolNS = "http://soap.zeus.com/zxtm/1.0/Pool/"

type soapFault struct {
	Code   string `xml:"faultcode"`
	String string `xml:"faultstring"`
}

func (f *soapFault) Error() string {
	return fmt.Sprintf("SOAP fault %s: %s", f.Code, f.String)
}

// isUnknownPool reports whether err is ZXTM's complaint about a pool that
// doesn't exist.
func isUnknownPool(err error) bool {
	var fault *soapFault
	return errors.As(err, &fault) && strings.Contains(fault.String, "Unknown pool")
}

func xmlEscape(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}

// buildEnvelope builds a call to one of the Pool methods that take an
// array of pool names and optionally an array-of-arrays of nodes.
// paramName is what the WSDL calls the nodes parameter ("values" for
// addNodes/removeNodes, "nodes" for addPool/disableNodes).
func buildEnvelope(method string, pools []string, paramName string, nodes []string) []byte {
	var sb strings.Builder
	sb.WriteString(xml.Header)
	sb.WriteString(`<SOAP-ENV:Envelope` +
		` xmlns:SOAP-ENV="http://schemas.xmlsoap.org/soap/envelope/"` +
		` xmlns:SOAP-ENC="http://schemas.xmlsoap.org/soap/encoding/"` +
		` xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance"` +
		` xmlns:xsd="http://www.w3.org/1999/XMLSchema"` +
		` SOAP-ENV:encodingStyle="http://schemas.xmlsoap.org/soap/encoding/">` + "\n")
	sb.WriteString(" <SOAP-ENV:Body>\n")
	fmt.Fprintf(&sb, `  <zxtm:%s xmlns:zxtm=%q>`+"\n", method, poolNS)

	fmt.Fprintf(&sb,
		`   <names SOAP-ENC:arrayType="xsd:string[%d]" xsi:type="SOAP-ENC:Array">`+"\n",
		len(pools))
	for _, pool := range pools {
		fmt.Fprintf(&sb, `    <item xsi:type="xsd:string">%s</item>`+"\n", xmlEscape(pool))
	}
	sb.WriteString("   </names>\n")

	if paramName != "" {
		fmt.Fprintf(&sb,
			`   <%s SOAP-ENC:arrayType="xsd:list[1]" xsi:type="SOAP-ENC:Array">`+"\n",
			paramName)
		fmt.Fprintf(&sb,
			`    <item SOAP-ENC:arrayType="xsd:list[%d]" xsi:type="SOAP-ENC:Array">`+"\n",
			len(nodes))
		for _, node := range nodes {
			fmt.Fprintf(&sb, `     <item xsi:type="xsd:string">%s</item>`+"\n", xmlEscape(node))
		}
		sb.WriteString("    </item>\n")
		fmt.Fprintf(&sb, "   </%s>\n", paramName)
	}

	fmt.Fprintf(&sb, "  </zxtm:%s>\n", method)
	sb.WriteString(" </SOAP-ENV:Body>\n")
	sb.WriteString("</SOAP-ENV:Envelope>\n")
	return []byte(sb.String())
}

// call POSTs the envelope and returns the raw response body after checking
// for a SOAP fault.
func (b *Balancer) call(ctx context.Context, method string, envelope []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.url, bytes.NewReader(envelope))
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(b.user, b.password)
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", poolNS+method)

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	// ZXTM reports faults with a 500 status; decode those before
	// complaining about the status code.
	var faultDoc struct {
		Fault *soapFault `xml:"Body>Fault"`
	}
	if err := xml.Unmarshal(body, &faultDoc); err == nil && faultDoc.Fault != nil {
		return nil, faultDoc.Fault
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: HTTP %s", method, resp.Status)
	}
	return body, nil
}

// parseNodeLists pulls the string-array-array out of a getNodes response.
func parseNodeLists(body []byte) ([][]string, error) {
	var doc struct {
		Pools []struct {
			Nodes []string `xml:"item"`
		} `xml:"Body>getNodesResponse>retval>item"`
	}
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decoding getNodes response: %w", err)
	}
	lists := make([][]string, len(doc.Pools))
	for i, pool := range doc.Pools {
		lists[i] = pool.Nodes
	}
	return lists, nil
}
