// Package preflight provides readiness checks for the filesystem paths,
// media tools and external services mediabatch depends on.
//
// These checks run in two contexts:
//   - The daemon health endpoint reports them without contacting the model API.
//   - The CLI "mediabatch status" command runs them all, including an
//     inference health check when an API key is configured.
package preflight
