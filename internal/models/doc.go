// Package models defines the domain models of the estate sale allocation engine.
//
// # Contested resources
//
// Two kinds of scarce resources are granted to exactly one claimant:
//   - Item: an auction item, won through bids and settled after its end time
//   - LineEntry: a turn in the physical line at a sale location
//
// Bid and Allocation are the append-only ledger rows behind an item.
// Sale, Subscriber and Contact are owned by the surrounding marketplace and
// are only read here.
//
// # Design Principles
//
// 1. **Money is decimal**: amounts use shopspring/decimal, stores keep cents
// 2. **Status is the lock**: every mutation of Item.Status, Item.CurrentBid and
// LineEntry.Status goes through a conditional update in the store
// 3. **IDs, not pointers**: relationships are expressed with ID strings
package models
