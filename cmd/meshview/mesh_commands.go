package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"meshview/internal/meshio"
	"meshview/internal/viewerctl"
	"meshview/internal/wire"
)

func newMeshCommand(ctx *commandContext) *cobra.Command {
	meshCmd := &cobra.Command{
		Use:   "mesh",
		Short: "Send meshes to the viewer",
	}
	meshCmd.AddCommand(newMeshSendCommand(ctx))
	meshCmd.AddCommand(newMeshTriangleCommand(ctx))
	meshCmd.AddCommand(newMeshSphereCommand(ctx))
	return meshCmd
}

func newMeshSendCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "send <file.obj>",
		Short: "Send a Wavefront OBJ mesh",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mesh, err := meshio.ReadOBJFile(args[0])
			if err != nil {
				return err
			}
			return sendMesh(cmd, ctx, mesh)
		},
	}
}

func newMeshTriangleCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "triangle",
		Short: "Send a single test triangle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return sendMesh(cmd, ctx, meshio.Triangle())
		},
	}
}

func newMeshSphereCommand(ctx *commandContext) *cobra.Command {
	var radius float32
	var rings, segments int
	var center vec3Flag

	cmd := &cobra.Command{
		Use:   "sphere",
		Short: "Send a generated sphere",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mesh, err := meshio.Sphere(center.value, radius, rings, segments)
			if err != nil {
				return err
			}
			return sendMesh(cmd, ctx, mesh)
		},
	}
	cmd.Flags().Float32VarP(&radius, "radius", "r", 30, "Sphere radius")
	cmd.Flags().IntVar(&rings, "rings", 32, "Latitude bands")
	cmd.Flags().IntVar(&segments, "segments", 64, "Longitude slices")
	cmd.Flags().Var(&center, "center", "Sphere center (default 0,0,0)")
	return cmd
}

func sendMesh(cmd *cobra.Command, ctx *commandContext, mesh wire.Mesh) error {
	if err := mesh.Validate(); err != nil {
		return fmt.Errorf("invalid mesh: %w", err)
	}
	return ctx.withClient(func(client *viewerctl.Client) error {
		if err := client.SendMesh(cmd.Context(), mesh); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Sent mesh: %d vertices, %d faces\n", len(mesh.Vertices), len(mesh.Faces))
		return nil
	})
}
