package subscription

import (
	"bytes"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"regexp"
	"text/template"
	"time"

	"github.com/google/uuid"
)

// WS-BaseNotification SOAP actions understood by the camera's event
// service.
const (
	subscribeAction   = "http://docs.oasis-open.org/wsn/bw-2/NotificationProducer/SubscribeRequest"
	renewAction       = "http://docs.oasis-open.org/wsn/bw-2/SubscriptionManager/RenewRequest"
	unsubscribeAction = "http://docs.oasis-open.org/wsn/bw-2/SubscriptionManager/UnsubscribeRequest"
)

const soapContentType = "application/soap+xml;charset=UTF-8"

// wsseCreatedLayout is the Created timestamp format the camera accepts.
const wsseCreatedLayout = "2006-01-02T15:04:05.000Z"

// deviceTimeLayout is how the camera formats CurrentTime/TerminationTime.
const deviceTimeLayout = "2006-01-02T15:04:05Z"

// securityToken is a WS-UsernameToken header with a digest password.
type securityToken struct {
	TokenID        string
	Username       string
	PasswordDigest string
	Nonce          string
	Created        string
}

// newSecurityToken builds the digest: base64(sha1(nonce + created +
// password)). The camera only reads the first 31 bytes of the password,
// so longer passwords are truncated to match what it compares against.
func newSecurityToken(username, password string, now time.Time) securityToken {
	created := now.UTC().Format(wsseCreatedLayout)
	rawNonce := uuid.New()

	return securityToken{
		TokenID:        uuid.NewString(),
		Username:       username,
		PasswordDigest: passwordDigest(rawNonce[:], created, password),
		Nonce:          base64.StdEncoding.EncodeToString(rawNonce[:]),
		Created:        created,
	}
}

func passwordDigest(nonce []byte, created, password string) string {
	if len(password) > 31 {
		password = password[:31]
	}

	h := sha1.New()
	h.Write(nonce)
	h.Write([]byte(created))
	h.Write([]byte(password))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

const securityHeaderXML = `<wsse:Security soap:mustUnderstand="true" xmlns:wsse="http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-wssecurity-secext-1.0.xsd" xmlns:wsu="http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-wssecurity-utility-1.0.xsd">
<wsse:UsernameToken wsu:Id="UsernameToken-{{.Security.TokenID}}">
<wsse:Username>{{.Security.Username}}</wsse:Username>
<wsse:Password Type="http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-username-token-profile-1.0#PasswordDigest">{{.Security.PasswordDigest}}</wsse:Password>
<wsse:Nonce EncodingType="http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-soap-message-security-1.0#Base64Binary">{{.Security.Nonce}}</wsse:Nonce>
<wsu:Created>{{.Security.Created}}</wsu:Created>
</wsse:UsernameToken>
</wsse:Security>`

var subscribeTemplate = template.Must(template.New("subscribe").Parse(
	`<soap:Envelope xmlns:add="http://www.w3.org/2005/08/addressing" xmlns:b="http://docs.oasis-open.org/wsn/b-2" xmlns:soap="http://www.w3.org/2003/05/soap-envelope">
<soap:Header>` + securityHeaderXML + `</soap:Header>
<soap:Body>
<b:Subscribe>
<b:ConsumerReference>
<add:Address>{{.Address}}</add:Address>
</b:ConsumerReference>
<b:InitialTerminationTime>{{.TerminationTime}}</b:InitialTerminationTime>
</b:Subscribe>
</soap:Body>
</soap:Envelope>`))

var renewTemplate = template.Must(template.New("renew").Parse(
	`<soap:Envelope xmlns:add="http://www.w3.org/2005/08/addressing" xmlns:b="http://docs.oasis-open.org/wsn/b-2" xmlns:soap="http://www.w3.org/2003/05/soap-envelope">
<soap:Header>` + securityHeaderXML + `
<add:Action>` + renewAction + `</add:Action>
<add:To>{{.To}}</add:To>
</soap:Header>
<soap:Body>
<b:Renew>
<b:TerminationTime>{{.TerminationTime}}</b:TerminationTime>
</b:Renew>
</soap:Body>
</soap:Envelope>`))

var unsubscribeTemplate = template.Must(template.New("unsubscribe").Parse(
	`<soap:Envelope xmlns:add="http://www.w3.org/2005/08/addressing" xmlns:b="http://docs.oasis-open.org/wsn/b-2" xmlns:soap="http://www.w3.org/2003/05/soap-envelope">
<soap:Header>` + securityHeaderXML + `
<add:Action>` + unsubscribeAction + `</add:Action>
<add:To>{{.To}}</add:To>
</soap:Header>
<soap:Body>
<b:Unsubscribe/>
</soap:Body>
</soap:Envelope>`))

type soapRequest struct {
	Security        securityToken
	Address         string
	To              string
	TerminationTime string
}

func renderSOAP(tmpl *template.Template, req soapRequest) ([]byte, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, req); err != nil {
		return nil, fmt.Errorf("failed to render SOAP request: %w", err)
	}
	return buf.Bytes(), nil
}

// terminationTimeValue formats a lease term as an ISO 8601 duration.
func terminationTimeValue(term time.Duration) string {
	return fmt.Sprintf("PT%dS", int(term.Seconds()))
}

// extractElement pulls the text of the first occurrence of an XML element
// out of a response. The camera emits namespace prefixes that vary across
// firmware versions, so a tolerant pattern match beats a strict XML
// decode here (same approach as camera vendor tooling).
func extractElement(body []byte, element string) (string, bool) {
	re := regexp.MustCompile(element + `>([^<]+)<`)
	match := re.FindSubmatch(body)
	if match == nil {
		return "", false
	}
	return string(match[1]), true
}

// extractTime parses a device timestamp element from a response.
func extractTime(body []byte, element string) (time.Time, bool) {
	value, ok := extractElement(body, element)
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(deviceTimeLayout, value)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
