package flow

import (
	"fmt"

	"github.com/flowvector/flowvector/pkg/models"
)

// inferConnections wires the graph's instances by port type compatibility.
// For each ordered producer/consumer pair in instantiation order, each
// producer output connects to the first unsatisfied required input port in
// declaration order that accepts its type. The first candidate producer wins;
// there is no smarter matching. Matching runs over both directions of every
// pair, so a producer later in the list can still feed an earlier consumer;
// two instances that feed each other produce a cycle, which validation
// rejects. Pairs with no compatible ports stay unconnected, which is only a
// problem if a required input is left unsatisfied at validation time.
func (s *Service) inferConnections(graph *models.FlowGraph) error {
	nodes := graph.NodesInOrder()

	descriptors := make(map[string]*models.NodeDescriptor, len(nodes))

	for _, node := range nodes {
		descriptor, err := s.registry.NodeDescriptor(node.Type)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidRequest, err)
		}

		descriptors[node.ID] = descriptor
	}

	satisfied := make(map[string]map[string]bool, len(nodes))
	for _, node := range nodes {
		satisfied[node.ID] = make(map[string]bool)
	}

	for _, producer := range nodes {
		for _, consumer := range nodes {
			if producer.ID == consumer.ID {
				continue
			}

			for _, output := range descriptors[producer.ID].Outputs {
				port, ok := firstOpenInput(descriptors[consumer.ID], satisfied[consumer.ID], output.Type)
				if !ok {
					continue
				}

				satisfied[consumer.ID][port] = true
				s.connect(graph, producer, output.Name, consumer, port)

				s.logger.Debug("Inferred connection",
					"source", producer.ID+"."+output.Name,
					"target", consumer.ID+"."+port)
			}
		}
	}

	return nil
}

// firstOpenInput returns the first required, not-yet-satisfied input port in
// declaration order accepting the given output type.
func firstOpenInput(descriptor *models.NodeDescriptor, satisfied map[string]bool, outputType string) (string, bool) {
	for _, input := range descriptor.Inputs {
		if !input.Required || satisfied[input.Name] {
			continue
		}

		if input.Accepts(outputType) {
			return input.Name, true
		}
	}

	return "", false
}
