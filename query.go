package dope

import (
	"fmt"
	"io"
)

// Query writes the SDK version, the object name and the input and output
// tensor layout of the loaded network in human readable format
func (m *Model) Query(w io.Writer) error {

	ver, err := m.SDKVersion()

	if err != nil {
		return fmt.Errorf("error querying SDK version: %w", err)
	}

	fmt.Fprintf(w, "Driver Version: %s, API Version: %s\n", ver.DriverVersion, ver.APIVersion)
	fmt.Fprintf(w, "Model: %s (%s)\n", m.name, m.file)
	fmt.Fprintf(w, "Model Input Number: %d, Output Number: %d\n",
		m.ioNum.NumberInput, m.ioNum.NumberOutput)

	width, height := m.InputSize()
	fmt.Fprintf(w, "Input size: %dx%d\n", width, height)

	fmt.Fprintf(w, "Input tensors:\n")

	for _, attr := range m.inputAttrs {
		fmt.Fprintf(w, "  %s\n", attr.String())
	}

	fmt.Fprintf(w, "Output tensors:\n")

	for _, attr := range m.outputAttrs {
		fmt.Fprintf(w, "  %s\n", attr.String())
	}

	return nil
}
