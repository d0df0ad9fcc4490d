package signaling

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/emiago/sipgo"
	"github.com/emiago/sipgo/sip"
	"github.com/google/uuid"
	"github.com/icholy/digest"
)

// Config holds the SIP client's transport settings.
type Config struct {
	// BindAddr is the local address to listen on for in-dialog requests.
	BindAddr string
	// Port is the local SIP port.
	Port int
	// AdvertiseAddr is the address placed in Contact headers. Auto-detected
	// when empty.
	AdvertiseAddr string
}

// Client is the sipgo-backed Adapter. One Client holds one registration and
// any number of sequential sessions; the single-active-call policy lives in
// the controller, but a concurrent inbound INVITE is refused here with 486
// so the far end gets a proper busy signal.
type Client struct {
	cfg Config

	mu         sync.Mutex
	ua         *sipgo.UserAgent
	srv        *sipgo.Server
	client     *sipgo.Client
	connected  bool
	identity   Identity
	serverHost string
	serverPort int
	serverAddr string
	localTag   string
	sessions   map[string]*session

	onIncoming    IncomingFunc
	onStateChange StateChangeFunc

	events     chan changeEvent
	listenStop context.CancelFunc
	pumpDone   chan struct{}
}

type changeEvent struct {
	handle string
	state  SessionState
}

// session tracks one SIP dialog's identifiers for in-dialog requests,
// following RFC 3261 Section 12 bookkeeping.
type session struct {
	handle    string // Call-ID
	outbound  bool
	remote    string
	remoteTag string
	localTag  string

	inviteReq  *sip.Request
	inviteResp *sip.Response         // 200 OK for outbound dialogs
	serverTx   sip.ServerTransaction // pending inbound INVITE transaction

	remoteContact string
	localCSeq     atomic.Uint32

	established        atomic.Bool
	cancelled          atomic.Bool
	reInviteInProgress atomic.Bool
}

// NewClient creates an unconnected SIP client.
func NewClient(cfg Config) *Client {
	if cfg.BindAddr == "" {
		cfg.BindAddr = "0.0.0.0"
	}
	if cfg.Port == 0 {
		cfg.Port = 5060
	}
	if cfg.AdvertiseAddr == "" {
		cfg.AdvertiseAddr = primaryInterfaceIP()
	}
	return &Client{
		cfg:      cfg,
		sessions: make(map[string]*session),
	}
}

// OnIncoming implements Adapter.
func (c *Client) OnIncoming(fn IncomingFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onIncoming = fn
}

// OnStateChange implements Adapter.
func (c *Client) OnStateChange(fn StateChangeFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onStateChange = fn
}

// Connect implements Adapter. Subsequent calls while connected are no-ops.
func (c *Client) Connect(ctx context.Context, identity Identity, server string) error {
	c.mu.Lock()
	if c.connected {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	host, port := splitServer(server)

	ua, err := sipgo.NewUA()
	if err != nil {
		return fmt.Errorf("create user agent: %w", err)
	}
	srv, err := sipgo.NewServer(ua)
	if err != nil {
		ua.Close()
		return fmt.Errorf("create server: %w", err)
	}
	client, err := sipgo.NewClient(ua)
	if err != nil {
		ua.Close()
		return fmt.Errorf("create client: %w", err)
	}

	srv.OnRequest(sip.INVITE, c.handleINVITE)
	srv.OnRequest(sip.BYE, c.handleBYE)
	srv.OnRequest(sip.CANCEL, c.handleCANCEL)
	srv.OnRequest(sip.ACK, c.handleACK)

	listenCtx, stop := context.WithCancel(context.Background())
	listenAddr := fmt.Sprintf("%s:%d", c.cfg.BindAddr, c.cfg.Port)
	go func() {
		if err := srv.ListenAndServe(listenCtx, "udp", listenAddr); err != nil && listenCtx.Err() == nil {
			slog.Error("[SIP] Listener stopped", "addr", listenAddr, "error", err)
		}
	}()

	c.mu.Lock()
	c.ua = ua
	c.srv = srv
	c.client = client
	c.identity = identity
	c.serverHost = host
	c.serverPort = port
	c.serverAddr = fmt.Sprintf("%s:%d", host, port)
	c.localTag = newTag()
	c.listenStop = stop
	c.events = make(chan changeEvent, 32)
	c.pumpDone = make(chan struct{})
	c.connected = true
	go c.pumpEvents(c.events, c.pumpDone)
	c.mu.Unlock()

	if err := c.register(ctx, 3600); err != nil {
		c.teardown()
		return err
	}

	slog.Info("[SIP] Registered", "extension", identity.Extension, "server", c.serverAddr)
	return nil
}

// Disconnect implements Adapter.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	connected := c.connected
	c.mu.Unlock()
	if !connected {
		return nil
	}

	unregCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := c.register(unregCtx, 0); err != nil {
		slog.Warn("[SIP] Unregister failed", "error", err)
	}

	c.teardown()
	return nil
}

func (c *Client) teardown() {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return
	}
	c.connected = false
	stop := c.listenStop
	ua := c.ua
	events := c.events
	pumpDone := c.pumpDone
	c.ua, c.srv, c.client = nil, nil, nil
	c.sessions = make(map[string]*session)
	c.mu.Unlock()

	if stop != nil {
		stop()
	}
	if ua != nil {
		_ = ua.Close()
	}
	close(events)
	<-pumpDone
}

// pumpEvents delivers lifecycle callbacks in arrival order on one goroutine.
func (c *Client) pumpEvents(events chan changeEvent, done chan struct{}) {
	defer close(done)
	for ev := range events {
		c.mu.Lock()
		fn := c.onStateChange
		c.mu.Unlock()
		if fn != nil {
			fn(ev.handle, ev.state)
		}
	}
}

func (c *Client) emit(handle string, state SessionState) {
	// Non-blocking send under the lock so teardown cannot close the
	// channel mid-send.
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return
	}
	select {
	case c.events <- changeEvent{handle: handle, state: state}:
	default:
		slog.Warn("[SIP] Event queue full, dropping", "handle", handle, "state", state.String())
	}
}

// register sends a REGISTER with the given expiry, answering one digest
// challenge if the registrar issues one.
func (c *Client) register(ctx context.Context, expires int) error {
	c.mu.Lock()
	client := c.client
	identity := c.identity
	host, port := c.serverHost, c.serverPort
	tag := c.localTag
	c.mu.Unlock()
	if client == nil {
		return fmt.Errorf("not connected")
	}

	aor := sip.Uri{Scheme: "sip", User: identity.Extension, Host: host, Port: port}
	recipient := sip.Uri{Scheme: "sip", Host: host, Port: port}

	build := func(seqNo uint32) *sip.Request {
		req := sip.NewRequest(sip.REGISTER, recipient)
		from := &sip.FromHeader{DisplayName: identity.DisplayName, Address: aor, Params: sip.NewParams()}
		from.Params.Add("tag", tag)
		req.AppendHeader(from)
		req.AppendHeader(&sip.ToHeader{Address: aor, Params: sip.NewParams()})
		callID := sip.CallIDHeader(uuid.NewString())
		req.AppendHeader(&callID)
		req.AppendHeader(&sip.CSeqHeader{SeqNo: seqNo, MethodName: sip.REGISTER})
		req.AppendHeader(c.contactHeader())
		maxFwd := sip.MaxForwardsHeader(70)
		req.AppendHeader(&maxFwd)
		req.AppendHeader(sip.NewHeader("Expires", strconv.Itoa(expires)))
		return req
	}

	resp, err := c.transact(ctx, client, build(1))
	if err != nil {
		return fmt.Errorf("register: %w", err)
	}

	if resp.StatusCode == 401 || resp.StatusCode == 407 {
		challengeHdr := resp.GetHeader("WWW-Authenticate")
		if challengeHdr == nil {
			challengeHdr = resp.GetHeader("Proxy-Authenticate")
		}
		if challengeHdr == nil {
			return fmt.Errorf("register: challenge response without challenge header")
		}
		chal, err := digest.ParseChallenge(challengeHdr.Value())
		if err != nil {
			return fmt.Errorf("register: parse challenge: %w", err)
		}
		cred, err := digest.Digest(chal, digest.Options{
			Method:   "REGISTER",
			URI:      recipient.String(),
			Username: identity.Extension,
			Password: identity.Password,
		})
		if err != nil {
			return fmt.Errorf("register: compute digest: %w", err)
		}

		authed := build(2)
		authed.AppendHeader(sip.NewHeader("Authorization", cred.String()))
		resp, err = c.transact(ctx, client, authed)
		if err != nil {
			return fmt.Errorf("register: %w", err)
		}
	}

	if resp.StatusCode != sip.StatusOK {
		return fmt.Errorf("register rejected: %d %s", resp.StatusCode, resp.Reason)
	}
	return nil
}

// transact sends a request and waits for its final response.
func (c *Client) transact(ctx context.Context, client *sipgo.Client, req *sip.Request) (*sip.Response, error) {
	req.SetDestination(c.serverAddr)
	tx, err := client.TransactionRequest(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("send %s: %w", req.Method, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case resp := <-tx.Responses():
			if resp == nil {
				return nil, fmt.Errorf("%s transaction ended without response", req.Method)
			}
			if resp.StatusCode >= 200 {
				return resp, nil
			}
		case <-tx.Done():
			return nil, fmt.Errorf("%s transaction terminated", req.Method)
		}
	}
}

// PlaceCall implements Adapter. It sends the INVITE and returns the session
// handle immediately; progress arrives through OnStateChange.
func (c *Client) PlaceCall(ctx context.Context, target string) (string, error) {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return "", fmt.Errorf("not connected")
	}
	client := c.client
	identity := c.identity
	host, port := c.serverHost, c.serverPort
	c.mu.Unlock()

	callID := uuid.NewString()
	sess := &session{
		handle:   callID,
		outbound: true,
		remote:   target,
		localTag: newTag(),
	}
	sess.localCSeq.Store(1)

	sdpBody, err := buildSDP(identity.Extension, c.cfg.AdvertiseAddr, mediaPort, false)
	if err != nil {
		return "", err
	}

	targetURI := sip.Uri{Scheme: "sip", User: target, Host: host, Port: port}
	invite := sip.NewRequest(sip.INVITE, targetURI)

	from := &sip.FromHeader{
		DisplayName: identity.DisplayName,
		Address:     sip.Uri{Scheme: "sip", User: identity.Extension, Host: host, Port: port},
		Params:      sip.NewParams(),
	}
	from.Params.Add("tag", sess.localTag)
	invite.AppendHeader(from)
	invite.AppendHeader(&sip.ToHeader{Address: targetURI, Params: sip.NewParams()})
	callIDHdr := sip.CallIDHeader(callID)
	invite.AppendHeader(&callIDHdr)
	invite.AppendHeader(&sip.CSeqHeader{SeqNo: 1, MethodName: sip.INVITE})
	invite.AppendHeader(c.contactHeader())
	maxFwd := sip.MaxForwardsHeader(70)
	invite.AppendHeader(&maxFwd)
	contentType := sip.ContentTypeHeader("application/sdp")
	invite.AppendHeader(&contentType)
	invite.SetBody(sdpBody)
	invite.SetDestination(c.serverAddr)

	sess.inviteReq = invite

	tx, err := client.TransactionRequest(ctx, invite)
	if err != nil {
		return "", fmt.Errorf("send INVITE: %w", err)
	}

	c.mu.Lock()
	c.sessions[callID] = sess
	c.mu.Unlock()

	go c.watchINVITE(sess, invite, tx)

	slog.Info("[SIP] INVITE sent", "call_id", callID, "target", target)
	return callID, nil
}

// watchINVITE consumes the INVITE transaction's responses and reports
// session progress.
func (c *Client) watchINVITE(sess *session, invite *sip.Request, tx sip.ClientTransaction) {
	for {
		select {
		case resp := <-tx.Responses():
			if resp == nil {
				c.finishFailedINVITE(sess)
				return
			}
			switch {
			case resp.StatusCode < 200:
				if resp.StatusCode == 180 || resp.StatusCode == 183 {
					c.emit(sess.handle, SessionProgressing)
				}
			case resp.StatusCode < 300:
				c.confirmOutbound(sess, invite, resp)
				return
			default:
				slog.Info("[SIP] Call rejected", "call_id", sess.handle,
					"code", resp.StatusCode, "reason", resp.Reason)
				c.finishFailedINVITE(sess)
				return
			}
		case <-tx.Done():
			if !sess.established.Load() {
				c.finishFailedINVITE(sess)
			}
			return
		}
	}
}

func (c *Client) finishFailedINVITE(sess *session) {
	c.removeSession(sess.handle)
	// A locally cancelled INVITE ends with 487; the hangup path already
	// told the controller, so only spontaneous failures are reported.
	if !sess.cancelled.Load() {
		c.emit(sess.handle, SessionFailed)
	}
}

// confirmOutbound stores dialog state from the 200 OK and ACKs it.
func (c *Client) confirmOutbound(sess *session, invite *sip.Request, resp *sip.Response) {
	sess.inviteResp = resp
	if to := resp.To(); to != nil {
		if tag, ok := to.Params.Get("tag"); ok {
			sess.remoteTag = tag
		}
	}
	if contact := resp.Contact(); contact != nil {
		sess.remoteContact = contact.Address.String()
	}

	if err := c.sendACK(sess, invite, resp); err != nil {
		slog.Warn("[SIP] ACK failed", "call_id", sess.handle, "error", err)
	}

	sess.established.Store(true)
	c.emit(sess.handle, SessionEstablished)
}

// sendACK acknowledges a 2xx: same CSeq number with the ACK method, routed
// back to where the 200 OK came from.
func (c *Client) sendACK(sess *session, invite *sip.Request, resp *sip.Response) error {
	c.mu.Lock()
	client := c.client
	c.mu.Unlock()
	if client == nil {
		return fmt.Errorf("not connected")
	}

	recipient := invite.Recipient
	if sess.remoteContact != "" {
		var contactURI sip.Uri
		if err := sip.ParseUri(sess.remoteContact, &contactURI); err == nil {
			recipient = contactURI
		}
	}

	ack := sip.NewRequest(sip.ACK, recipient)
	sip.CopyHeaders("Via", invite, ack)
	sip.CopyHeaders("From", invite, ack)
	if to := resp.To(); to != nil {
		ack.AppendHeader(to)
	}
	if callIDHdr := invite.CallID(); callIDHdr != nil {
		ack.AppendHeader(callIDHdr)
	}
	if cseq := invite.CSeq(); cseq != nil {
		ack.AppendHeader(&sip.CSeqHeader{SeqNo: cseq.SeqNo, MethodName: sip.ACK})
	}
	maxFwd := sip.MaxForwardsHeader(70)
	ack.AppendHeader(&maxFwd)

	dest := resp.Source()
	if dest == "" {
		dest = c.serverAddr
	}
	ack.SetDestination(dest)

	if err := client.WriteRequest(ack); err != nil {
		return fmt.Errorf("write ACK: %w", err)
	}
	return nil
}

// Accept implements Adapter: answers an inbound INVITE with 200 OK.
func (c *Client) Accept(handle string) error {
	sess, err := c.lookup(handle)
	if err != nil {
		return err
	}
	if sess.outbound || sess.serverTx == nil {
		return fmt.Errorf("session %s is not an inbound invite", handle)
	}

	c.mu.Lock()
	identity := c.identity
	c.mu.Unlock()

	sdpBody, err := buildSDP(identity.Extension, c.cfg.AdvertiseAddr, mediaPort, false)
	if err != nil {
		return err
	}

	res := sip.NewResponseFromRequest(sess.inviteReq, sip.StatusOK, "OK", sdpBody)
	if to := res.To(); to != nil {
		to.Params.Add("tag", sess.localTag)
	}
	contentType := sip.ContentTypeHeader("application/sdp")
	res.AppendHeader(&contentType)
	res.AppendHeader(c.contactHeader())

	if err := sess.serverTx.Respond(res); err != nil {
		return fmt.Errorf("answer: %w", err)
	}

	sess.established.Store(true)
	c.emit(handle, SessionEstablished)
	return nil
}

// Reject implements Adapter: declines an inbound INVITE with 603.
func (c *Client) Reject(handle string) error {
	sess, err := c.lookup(handle)
	if err != nil {
		return err
	}
	if sess.outbound || sess.serverTx == nil {
		return fmt.Errorf("session %s is not an inbound invite", handle)
	}

	res := sip.NewResponseFromRequest(sess.inviteReq, 603, "Decline", nil)
	if to := res.To(); to != nil {
		to.Params.Add("tag", sess.localTag)
	}
	if err := sess.serverTx.Respond(res); err != nil {
		return fmt.Errorf("decline: %w", err)
	}

	c.removeSession(handle)
	return nil
}

// Terminate implements Adapter: BYE for established sessions, CANCEL for
// outbound attempts still in flight, 603 for unanswered inbound invites.
func (c *Client) Terminate(handle string) error {
	sess, err := c.lookup(handle)
	if err != nil {
		return err
	}

	switch {
	case sess.established.Load():
		return c.sendBYE(sess)
	case sess.outbound:
		sess.cancelled.Store(true)
		return c.sendCANCEL(sess)
	default:
		return c.Reject(handle)
	}
}

func (c *Client) sendBYE(sess *session) error {
	c.mu.Lock()
	client := c.client
	c.mu.Unlock()
	if client == nil {
		return fmt.Errorf("not connected")
	}

	bye, err := c.buildInDialog(sess, sip.BYE, nil, "")
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := c.transact(ctx, client, bye)
	if err != nil {
		return fmt.Errorf("bye: %w", err)
	}
	if resp.StatusCode != sip.StatusOK {
		slog.Warn("[SIP] BYE rejected", "call_id", sess.handle, "code", resp.StatusCode)
	}
	c.removeSession(sess.handle)
	return nil
}

func (c *Client) sendCANCEL(sess *session) error {
	c.mu.Lock()
	client := c.client
	c.mu.Unlock()
	if client == nil {
		return fmt.Errorf("not connected")
	}

	invite := sess.inviteReq
	cancelReq := sip.NewRequest(sip.CANCEL, invite.Recipient)
	sip.CopyHeaders("Via", invite, cancelReq)
	sip.CopyHeaders("From", invite, cancelReq)
	sip.CopyHeaders("To", invite, cancelReq)
	sip.CopyHeaders("Call-ID", invite, cancelReq)
	if cseq := invite.CSeq(); cseq != nil {
		cancelReq.AppendHeader(&sip.CSeqHeader{SeqNo: cseq.SeqNo, MethodName: sip.CANCEL})
	}
	maxFwd := sip.MaxForwardsHeader(70)
	cancelReq.AppendHeader(&maxFwd)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := c.transact(ctx, client, cancelReq); err != nil {
		return fmt.Errorf("cancel: %w", err)
	}
	c.removeSession(sess.handle)
	return nil
}

// SendMidCallSignal implements Adapter: relays a DTMF payload as an INFO
// request with a dtmf-relay body. Delivery is asynchronous; failures are
// logged, not surfaced, matching the local-tone-first model.
func (c *Client) SendMidCallSignal(handle string, payload string) error {
	sess, err := c.lookup(handle)
	if err != nil {
		return err
	}
	if !sess.established.Load() {
		return fmt.Errorf("session %s not established", handle)
	}

	c.mu.Lock()
	client := c.client
	c.mu.Unlock()
	if client == nil {
		return fmt.Errorf("not connected")
	}

	info, err := c.buildInDialog(sess, sip.INFO, []byte(payload), "application/dtmf-relay")
	if err != nil {
		return err
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		resp, err := c.transact(ctx, client, info)
		if err != nil {
			slog.Warn("[SIP] INFO failed", "call_id", handle, "error", err)
			return
		}
		if resp.StatusCode != sip.StatusOK {
			slog.Warn("[SIP] INFO rejected", "call_id", handle, "code", resp.StatusCode)
		}
	}()
	return nil
}

// Renegotiate implements Adapter: re-INVITEs with sendonly SDP to hold,
// sendrecv to resume. Blocks until the far end answers.
func (c *Client) Renegotiate(handle string, hold bool) error {
	sess, err := c.lookup(handle)
	if err != nil {
		return err
	}
	if !sess.established.Load() {
		return fmt.Errorf("session %s not established", handle)
	}
	if !sess.reInviteInProgress.CompareAndSwap(false, true) {
		return fmt.Errorf("renegotiation already in progress for %s", handle)
	}
	defer sess.reInviteInProgress.Store(false)

	c.mu.Lock()
	client := c.client
	identity := c.identity
	c.mu.Unlock()
	if client == nil {
		return fmt.Errorf("not connected")
	}

	sdpBody, err := buildSDP(identity.Extension, c.cfg.AdvertiseAddr, mediaPort, hold)
	if err != nil {
		return err
	}

	reInvite, err := c.buildInDialog(sess, sip.INVITE, sdpBody, "application/sdp")
	if err != nil {
		return err
	}
	reInvite.AppendHeader(c.contactHeader())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	resp, err := c.transact(ctx, client, reInvite)
	if err != nil {
		return fmt.Errorf("renegotiate: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("renegotiate rejected: %d %s", resp.StatusCode, resp.Reason)
	}

	if err := c.sendACK(sess, reInvite, resp); err != nil {
		slog.Warn("[SIP] re-INVITE ACK failed", "call_id", handle, "error", err)
	}
	return nil
}

// SetMediaSendEnabled implements Adapter. Media flows outside this client,
// so the flip is recorded for the media layer to observe; signaling does not
// change.
func (c *Client) SetMediaSendEnabled(handle string, enabled bool) error {
	sess, err := c.lookup(handle)
	if err != nil {
		return err
	}
	if !sess.established.Load() {
		return fmt.Errorf("session %s not established", handle)
	}
	slog.Debug("[SIP] Media send toggled", "call_id", handle, "enabled", enabled)
	return nil
}

// buildInDialog constructs an in-dialog request (BYE, INFO, re-INVITE) with
// the dialog's identifiers, per RFC 3261 Section 12.2.1.1.
func (c *Client) buildInDialog(sess *session, method sip.RequestMethod, body []byte, contentType string) (*sip.Request, error) {
	invite := sess.inviteReq
	if invite == nil {
		return nil, fmt.Errorf("session %s has no dialog", sess.handle)
	}

	var recipient sip.Uri
	if sess.outbound {
		if sess.remoteContact != "" {
			if err := sip.ParseUri(sess.remoteContact, &recipient); err != nil {
				return nil, fmt.Errorf("parse remote contact: %w", err)
			}
		} else if to := invite.To(); to != nil {
			recipient = to.Address
		}
	} else {
		if contact := invite.Contact(); contact != nil {
			recipient = contact.Address
			recipient.UriParams = sip.NewParams()
		} else if from := invite.From(); from != nil {
			recipient = from.Address
		}
	}

	req := sip.NewRequest(method, recipient)

	if sess.outbound {
		// UAC dialog: From is ours (our tag), To is theirs with the tag
		// learned from the 200 OK.
		if from := invite.From(); from != nil {
			req.AppendHeader(&sip.FromHeader{
				DisplayName: from.DisplayName,
				Address:     from.Address,
				Params:      from.Params.Clone(),
			})
		}
		if to := invite.To(); to != nil {
			toHdr := &sip.ToHeader{DisplayName: to.DisplayName, Address: to.Address, Params: sip.NewParams()}
			if sess.remoteTag != "" {
				toHdr.Params.Add("tag", sess.remoteTag)
			}
			req.AppendHeader(toHdr)
		}
	} else {
		// UAS dialog: From/To swap relative to the INVITE we received.
		if to := invite.To(); to != nil {
			fromHdr := &sip.FromHeader{DisplayName: to.DisplayName, Address: to.Address, Params: sip.NewParams()}
			fromHdr.Params.Add("tag", sess.localTag)
			req.AppendHeader(fromHdr)
		}
		if from := invite.From(); from != nil {
			req.AppendHeader(&sip.ToHeader{
				DisplayName: from.DisplayName,
				Address:     from.Address,
				Params:      from.Params.Clone(),
			})
		}
	}

	if callIDHdr := invite.CallID(); callIDHdr != nil {
		req.AppendHeader(callIDHdr)
	}
	req.AppendHeader(&sip.CSeqHeader{SeqNo: sess.localCSeq.Add(1), MethodName: method})
	maxFwd := sip.MaxForwardsHeader(70)
	req.AppendHeader(&maxFwd)

	if len(body) > 0 {
		ct := sip.ContentTypeHeader(contentType)
		req.AppendHeader(&ct)
		req.SetBody(body)
	}
	return req, nil
}

// --- inbound request handlers ---

func (c *Client) handleINVITE(req *sip.Request, tx sip.ServerTransaction) {
	callID := ""
	if h := req.CallID(); h != nil {
		callID = h.Value()
	}

	c.mu.Lock()
	busy := len(c.sessions) > 0
	onIncoming := c.onIncoming
	c.mu.Unlock()

	if busy {
		// Single active call policy: a second invite gets a proper busy.
		res := sip.NewResponseFromRequest(req, 486, "Busy Here", nil)
		if err := tx.Respond(res); err != nil {
			slog.Warn("[SIP] Failed to respond busy", "call_id", callID, "error", err)
		}
		slog.Info("[SIP] Refused second incoming call", "call_id", callID)
		return
	}

	sess := &session{
		handle:    callID,
		localTag:  newTag(),
		inviteReq: req,
		serverTx:  tx,
	}
	if cseq := req.CSeq(); cseq != nil {
		sess.localCSeq.Store(cseq.SeqNo)
	}

	remoteAddress, remoteName := "", ""
	if from := req.From(); from != nil {
		remoteAddress = from.Address.User
		remoteName = from.DisplayName
		if tag, ok := from.Params.Get("tag"); ok {
			sess.remoteTag = tag
		}
	}
	sess.remote = remoteAddress

	c.mu.Lock()
	c.sessions[callID] = sess
	c.mu.Unlock()

	ringing := sip.NewResponseFromRequest(req, 180, "Ringing", nil)
	if to := ringing.To(); to != nil {
		to.Params.Add("tag", sess.localTag)
	}
	if err := tx.Respond(ringing); err != nil {
		slog.Warn("[SIP] Failed to send 180", "call_id", callID, "error", err)
	}

	slog.Info("[SIP] Incoming call", "call_id", callID, "from", remoteAddress, "name", remoteName)
	if onIncoming != nil {
		onIncoming(callID, remoteAddress, remoteName)
	}
}

func (c *Client) handleBYE(req *sip.Request, tx sip.ServerTransaction) {
	callID := ""
	if h := req.CallID(); h != nil {
		callID = h.Value()
	}

	res := sip.NewResponseFromRequest(req, sip.StatusOK, "OK", nil)
	if err := tx.Respond(res); err != nil {
		slog.Warn("[SIP] Failed to answer BYE", "call_id", callID, "error", err)
	}

	if c.removeSession(callID) {
		slog.Info("[SIP] Remote hangup", "call_id", callID)
		c.emit(callID, SessionTerminated)
	}
}

func (c *Client) handleCANCEL(req *sip.Request, tx sip.ServerTransaction) {
	callID := ""
	if h := req.CallID(); h != nil {
		callID = h.Value()
	}

	res := sip.NewResponseFromRequest(req, sip.StatusOK, "OK", nil)
	if err := tx.Respond(res); err != nil {
		slog.Warn("[SIP] Failed to answer CANCEL", "call_id", callID, "error", err)
	}

	sess, err := c.lookup(callID)
	if err != nil {
		return
	}
	if sess.serverTx != nil {
		terminated := sip.NewResponseFromRequest(sess.inviteReq, 487, "Request Terminated", nil)
		if err := sess.serverTx.Respond(terminated); err != nil {
			slog.Debug("[SIP] 487 not delivered", "call_id", callID, "error", err)
		}
	}
	if c.removeSession(callID) {
		slog.Info("[SIP] Caller gave up before answer", "call_id", callID)
		c.emit(callID, SessionTerminated)
	}
}

func (c *Client) handleACK(req *sip.Request, tx sip.ServerTransaction) {
	if h := req.CallID(); h != nil {
		slog.Debug("[SIP] ACK received", "call_id", h.Value())
	}
}

// --- helpers ---

// mediaPort is the port advertised in SDP. The media plane is negotiated
// outside this client.
const mediaPort = 4000

func (c *Client) contactHeader() *sip.ContactHeader {
	return &sip.ContactHeader{
		Address: sip.Uri{
			Scheme: "sip",
			User:   c.identity.Extension,
			Host:   c.cfg.AdvertiseAddr,
			Port:   c.cfg.Port,
		},
	}
}

func (c *Client) lookup(handle string) (*session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sess, ok := c.sessions[handle]
	if !ok {
		return nil, fmt.Errorf("unknown session %q", handle)
	}
	return sess, nil
}

func (c *Client) removeSession(handle string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.sessions[handle]; !ok {
		return false
	}
	delete(c.sessions, handle)
	return true
}

func newTag() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}

// splitServer parses "host" or "host:port" with 5060 as the default port.
func splitServer(server string) (string, int) {
	host, portStr, err := net.SplitHostPort(server)
	if err != nil {
		return server, 5060
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return host, 5060
	}
	return host, port
}

// primaryInterfaceIP finds a non-loopback IPv4 address to advertise.
func primaryInterfaceIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err == nil {
		defer conn.Close()
		if addr, ok := conn.LocalAddr().(*net.UDPAddr); ok {
			return addr.IP.String()
		}
	}
	return "127.0.0.1"
}
