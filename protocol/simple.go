package protocol

import "encoding/binary"

// AssignClient asks the routing daemon for a client identifier. The payload
// carries the application name so the daemon can apply configured
// identities.
type AssignClient struct {
	Client ClientID
	Name   string
}

func (c *AssignClient) ID() CommandID { return IDAssignClient }
func (c *AssignClient) Sender() ClientID { return c.Client }
func (c *AssignClient) payloadSize() int { return len(c.Name) }
func (c *AssignClient) packPayload(b []byte) {
	copy(b, c.Name)
}

func unpackAssignClient(h header, p []byte) (Command, error) {
	return &AssignClient{Client: h.client, Name: string(p)}, nil
}

const assignClientAckPayloadSize = 3

// AssignClientAck carries the identifier the daemon assigned. The payload
// is the assigned client followed by one reserved zero byte.
type AssignClientAck struct {
	Client   ClientID
	Assigned ClientID
}

func (c *AssignClientAck) ID() CommandID { return IDAssignClientAck }
func (c *AssignClientAck) Sender() ClientID { return c.Client }
func (c *AssignClientAck) payloadSize() int { return assignClientAckPayloadSize }
func (c *AssignClientAck) packPayload(b []byte) {
	binary.LittleEndian.PutUint16(b[0:], uint16(c.Assigned))
	b[2] = 0
}

func unpackAssignClientAck(h header, p []byte) (Command, error) {
	if len(p) < assignClientAckPayloadSize {
		return nil, ErrTruncated
	}
	return &AssignClientAck{
		Client:   h.client,
		Assigned: ClientID(binary.LittleEndian.Uint16(p[0:])),
	}, nil
}

// HeaderOnly is the shape of the commands that carry no payload:
// application registration, ping/pong and suspend.
type HeaderOnly struct {
	Kind   CommandID
	Client ClientID
}

func (c *HeaderOnly) ID() CommandID { return c.Kind }
func (c *HeaderOnly) Sender() ClientID { return c.Client }
func (c *HeaderOnly) payloadSize() int { return 0 }
func (c *HeaderOnly) packPayload(b []byte) {}

// NewSuspend builds the suspend command sent when the host enters a low
// power phase.
func NewSuspend(client ClientID) *HeaderOnly {
	return &HeaderOnly{Kind: IDSuspend, Client: client}
}

func unpackHeaderOnly(id CommandID) func(h header, p []byte) (Command, error) {
	return func(h header, p []byte) (Command, error) {
		return &HeaderOnly{Kind: id, Client: h.client}, nil
	}
}

const offerPayloadSize = 9

// OfferFields is the payload shared by OfferService and StopOfferService.
type OfferFields struct {
	Service  ServiceID
	Instance InstanceID
	Major    MajorVersion
	Minor    MinorVersion
}

func (f *OfferFields) payloadSize() int { return offerPayloadSize }

func (f *OfferFields) packPayload(b []byte) {
	binary.LittleEndian.PutUint16(b[0:], uint16(f.Service))
	binary.LittleEndian.PutUint16(b[2:], uint16(f.Instance))
	b[4] = byte(f.Major)
	binary.LittleEndian.PutUint32(b[5:], uint32(f.Minor))
}

func (f *OfferFields) unpackPayload(b []byte) {
	f.Service = ServiceID(binary.LittleEndian.Uint16(b[0:]))
	f.Instance = InstanceID(binary.LittleEndian.Uint16(b[2:]))
	f.Major = MajorVersion(b[4])
	f.Minor = MinorVersion(binary.LittleEndian.Uint32(b[5:]))
}

// OfferService announces a service instance to the daemon.
type OfferService struct {
	Client ClientID
	OfferFields
}

func (c *OfferService) ID() CommandID { return IDOfferService }
func (c *OfferService) Sender() ClientID { return c.Client }

// StopOfferService withdraws a service instance.
type StopOfferService struct {
	Client ClientID
	OfferFields
}

func (c *StopOfferService) ID() CommandID { return IDStopOfferService }
func (c *StopOfferService) Sender() ClientID { return c.Client }

func unpackOffer(h header, p []byte) (Command, error) {
	if len(p) < offerPayloadSize {
		return nil, ErrTruncated
	}
	var f OfferFields
	f.unpackPayload(p)
	if h.id == IDOfferService {
		return &OfferService{Client: h.client, OfferFields: f}, nil
	}
	return &StopOfferService{Client: h.client, OfferFields: f}, nil
}

const securityPolicyResponsePayloadSize = 4

// SecurityPolicyResponse acknowledges a policy update or removal. Kind
// selects between the update and remove variants.
type SecurityPolicyResponse struct {
	Kind   CommandID
	Client ClientID
	Update UpdateID
}

func (c *SecurityPolicyResponse) ID() CommandID { return c.Kind }
func (c *SecurityPolicyResponse) Sender() ClientID { return c.Client }
func (c *SecurityPolicyResponse) payloadSize() int { return securityPolicyResponsePayloadSize }
func (c *SecurityPolicyResponse) packPayload(b []byte) {
	binary.LittleEndian.PutUint32(b[0:], uint32(c.Update))
}

func unpackSecurityPolicyResponse(h header, p []byte) (Command, error) {
	if len(p) < securityPolicyResponsePayloadSize {
		return nil, ErrTruncated
	}
	return &SecurityPolicyResponse{
		Kind:   h.id,
		Client: h.client,
		Update: UpdateID(binary.LittleEndian.Uint32(p[0:])),
	}, nil
}
