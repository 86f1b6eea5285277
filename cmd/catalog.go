package cmd

import _ "embed"

//go:embed catalog/sample.yaml
var sampleCatalog []byte
