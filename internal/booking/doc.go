// Package booking is the appointment store behind the booking skill.
//
// Ownership boundary:
//   - booking owns the schema, migrations, and the slot-exclusivity
//     invariant.
//   - conversational rules (identify-first, response phrasing) live in
//     the skills layer, not here.
package booking
