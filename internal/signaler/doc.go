// Package signaler is the client side of the lite-STUN rendezvous grammar:
// one-shot, fire-and-forget UDP sends plus external-address discovery.
//
// Nothing here retries, acknowledges or negotiates. A send is a single
// datagram on a scoped socket; UDP's lack of delivery guarantees is passed
// through to the caller untouched.
package signaler
