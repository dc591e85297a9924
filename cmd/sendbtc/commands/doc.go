// Package commands defines the sendbtc CLI, a thin client of the HTTP API.
//
// Commands
//
//   - quote      Prepare a payment and print its quote
//   - submit     Submit a prepared payment
//   - send       Prepare and submit in one step
//   - status     Show a payment
//   - history    List recent payments
//   - balance    Show the cached wallet balance
//   - recipient  Check a username handle
//   - token      Issue an access token for local testing
//   - hash-pin   Produce a SPENDING_PIN_HASH value
//
// The API location and token come from --api and --token, or from
// SENDBTC_API and SENDBTC_TOKEN.
package commands
