// Package flow drives the attendee side of accommodation booking: reading the
// catalog, selecting a unit, reserving it, allocating it to a registration,
// pairing with a spouse, paying through a hosted checkout and reconciling the
// browser's return from that checkout.
//
// Every step talks to the API through small consumer-side interfaces so the
// booker CLI can use *apiclient.Client and tests can use fakes. Anything that
// has to survive the checkout redirect goes through StateStore.
package flow
