// Package wire defines the officina message format and its CBOR codec.
//
// All messages are CBOR maps with integer keys. Three message kinds
// share one framing: requests (controller to plant), responses (plant to
// controller, correlated by messageId), and notifications (plant to
// controller, messageId 0, carrying one sampled attribute value with its
// timestamp).
package wire
